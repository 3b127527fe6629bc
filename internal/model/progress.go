package model

type ProgressStatus string

const (
	ProgressLocked    ProgressStatus = "LOCKED"
	ProgressUnlocked  ProgressStatus = "UNLOCKED"
	ProgressCompleted ProgressStatus = "COMPLETED"
)

// ModuleProgress 每个 (学员, 模块) 一行，LOCKED → UNLOCKED → COMPLETED 线性推进
type ModuleProgress struct {
	BaseModel
	UserID   uint           `gorm:"not null;uniqueIndex:ux_module_progress_user_module,priority:1" json:"userId"`
	ModuleID uint           `gorm:"not null;uniqueIndex:ux_module_progress_user_module,priority:2" json:"moduleId"`
	CourseID uint           `gorm:"index;not null" json:"courseId"`
	Status   ProgressStatus `gorm:"size:20;not null;default:'LOCKED'" json:"status"`
}

func (ModuleProgress) TableName() string {
	return "module_progress"
}
