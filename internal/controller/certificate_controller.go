package controller

import (
	"academy_backend/internal/service"
	"academy_backend/internal/util"
	"errors"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type CertificateController struct {
	CertificateService *service.CertificateService
}

func NewCertificateController(certificateService *service.CertificateService) *CertificateController {
	return &CertificateController{CertificateService: certificateService}
}

// ClaimCertificate godoc
// @Summary 领取课程证书
// @Description 满足结业条件（所有必修模块完成且测验通过）时颁发证书，重复领取返回同一张
// @Tags 证书
// @Produce json
// @Security BearerAuth
// @Param id path int true "课程ID"
// @Success 200 {object} util.Response{data=model.Certificate}
// @Failure 409 {object} util.Response "结业条件未满足"
// @Router /api/courses/{id}/certificate [post]
func (c *CertificateController) ClaimCertificate(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	cert, err := c.CertificateService.Grant(claims.UserID, util.MustParseUint(ctx.Param("id")), false)
	if err != nil {
		if errors.Is(err, util.ErrNotEligible) {
			util.Error(ctx, 409, util.ErrNotEligible.Error())
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, cert)
}

// ListCertificates godoc
// @Summary 当前用户的证书列表
// @Tags 证书
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=[]model.Certificate}
// @Router /api/certificates [get]
func (c *CertificateController) ListCertificates(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	certs, err := c.CertificateService.ListByUser(claims.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, certs)
}

// LookupCertificate godoc
// @Summary 按编号查验证书
// @Description 公开接口，用于第三方核验证书真伪
// @Tags 证书
// @Produce json
// @Param code path string true "证书编号"
// @Success 200 {object} util.Response{data=model.Certificate}
// @Failure 404 {object} util.Response
// @Router /api/certificates/{code} [get]
func (c *CertificateController) LookupCertificate(ctx *gin.Context) {
	cert, err := c.CertificateService.FindByCode(ctx.Param("code"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, cert)
}
