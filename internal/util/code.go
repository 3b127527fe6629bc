package util

import (
	"crypto/rand"
	"math/big"
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// CertificateCodePrefix 证书编号前缀，后接随机字母数字后缀
const CertificateCodePrefix = "CERT-"

// RandomCode 生成 length 位随机字母数字串
func RandomCode(length int) string {
	b := make([]byte, length)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand 不可用属于环境性故障，直接中断
			panic(err)
		}
		b[i] = codeAlphabet[n.Int64()]
	}
	return string(b)
}

// CertificateCode 生成证书编号，碰撞概率视为可忽略，不做预查
func CertificateCode() string {
	return CertificateCodePrefix + RandomCode(10)
}
