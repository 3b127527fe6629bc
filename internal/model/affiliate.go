package model

type AffiliateStatus string

const (
	AffiliatePending  AffiliateStatus = "PENDING"
	AffiliateApproved AffiliateStatus = "APPROVED"
	AffiliateRejected AffiliateStatus = "REJECTED"
)

// Affiliate 推广人，每个用户至多一个推广码
type Affiliate struct {
	BaseModel
	UserID uint   `gorm:"uniqueIndex;not null" json:"userId"`
	Code   string `gorm:"size:20;uniqueIndex;not null" json:"code"`
	// 佣金比例，百分比（例如 20 表示 20%）
	CommissionRate float64         `gorm:"not null;default:0" json:"commissionRate"`
	Status         AffiliateStatus `gorm:"size:20;not null;default:'PENDING'" json:"status"`
}

func (Affiliate) TableName() string {
	return "affiliates"
}

// AffiliateConversion 每笔入账的订单至多一条转化，佣金一经写入不再变更
type AffiliateConversion struct {
	BaseModel
	AffiliateID uint `gorm:"index;not null" json:"affiliateId"`
	PaymentID   uint `gorm:"uniqueIndex;not null" json:"paymentId"`
	UserID      uint `gorm:"index;not null" json:"userId"`
	CourseID    uint `gorm:"not null" json:"courseId"`

	AmountTotal     int64 `gorm:"not null" json:"amountTotal"`
	CommissionCents int64 `gorm:"not null" json:"commissionCents"`
}

func (AffiliateConversion) TableName() string {
	return "affiliate_conversions"
}
