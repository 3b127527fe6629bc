package model

// Certificate 每个 (学员, 课程) 至多一张；Code 全局唯一、人类可读
type Certificate struct {
	BaseModel
	UserID   uint   `gorm:"not null;uniqueIndex:ux_certificates_user_course,priority:1" json:"userId"`
	CourseID uint   `gorm:"not null;uniqueIndex:ux_certificates_user_course,priority:2" json:"courseId"`
	Code     string `gorm:"size:30;uniqueIndex;not null" json:"code"`
	// 管理员补发时为 true，跳过了资格校验
	Overridden bool `gorm:"default:false" json:"overridden"`
}

func (Certificate) TableName() string {
	return "certificates"
}
