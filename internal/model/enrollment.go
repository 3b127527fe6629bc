package model

// Enrollment 支付入账时创建，(user, course) 唯一，重复入账事件靠它兜底
type Enrollment struct {
	BaseModel
	UserID    uint `gorm:"not null;uniqueIndex:ux_enrollments_user_course,priority:1" json:"userId"`
	CourseID  uint `gorm:"not null;uniqueIndex:ux_enrollments_user_course,priority:2" json:"courseId"`
	PaymentID uint `gorm:"index" json:"paymentId"`
}

func (Enrollment) TableName() string {
	return "enrollments"
}
