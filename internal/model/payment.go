package model

type PaymentType string

const (
	PaymentOneTime     PaymentType = "ONE_TIME"
	PaymentInstallment PaymentType = "INSTALLMENT"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentActive    PaymentStatus = "ACTIVE"
	PaymentCompleted PaymentStatus = "COMPLETED"
	PaymentCancelled PaymentStatus = "CANCELLED"
	PaymentPastDue   PaymentStatus = "PAST_DUE"
)

// Payment 一条 (学员, 课程) 购买记录，跟随支付网关的会话生命周期。
type Payment struct {
	BaseModel
	UserID   uint `gorm:"index;not null" json:"userId"`
	CourseID uint `gorm:"index;not null" json:"courseId"`
	// 网关 checkout 会话 ID，webhook 与客户端核验都以它定位
	CheckoutID     string `gorm:"size:191;uniqueIndex;not null" json:"checkoutId"`
	SubscriptionID string `gorm:"size:191;index" json:"subscriptionId,omitempty"`
	CustomerID     string `gorm:"size:191" json:"-"`

	Type   PaymentType   `gorm:"size:20;not null" json:"type"`
	Status PaymentStatus `gorm:"size:20;not null;default:'PENDING'" json:"status"`

	AmountTotal int64 `gorm:"not null" json:"amountTotal"`
	AmountPaid  int64 `gorm:"not null;default:0" json:"amountPaid"`
	// 一次性付款时两者均为 1
	InstallmentsTotal int `gorm:"not null;default:1" json:"installmentsTotal"`
	InstallmentsPaid  int `gorm:"not null;default:0" json:"installmentsPaid"`
}

func (Payment) TableName() string {
	return "payments"
}

// Settled COMPLETED 和 ACTIVE 都算已入账：enrollment 已触发，重复事件必须空转
func (p *Payment) Settled() bool {
	return p.Status == PaymentCompleted || p.Status == PaymentActive
}

// Terminal 终态不再接受任何状态迁移
func (p *Payment) Terminal() bool {
	return p.Status == PaymentCompleted || p.Status == PaymentCancelled
}

// FullyPaid 分期全部到账（一次性付款在首笔成功时即满足）
func (p *Payment) FullyPaid() bool {
	return p.InstallmentsPaid >= p.InstallmentsTotal
}
