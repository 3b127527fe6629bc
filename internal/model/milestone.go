package model

type MilestoneCode string

const (
	MilestoneFirstModule   MilestoneCode = "FIRST_MODULE"
	MilestoneFirstQuizPass MilestoneCode = "FIRST_QUIZ_PASS"
	MilestoneQuarter       MilestoneCode = "QUARTER"
	MilestoneHalf          MilestoneCode = "HALF"
	MilestoneThreeQuarter  MilestoneCode = "THREE_QUARTER"
	MilestoneComplete      MilestoneCode = "COURSE_COMPLETE"
)

// MilestoneAward 每个 (学员, 课程, 里程碑) 至多一条，靠唯一索引保证幂等
type MilestoneAward struct {
	BaseModel
	UserID   uint          `gorm:"not null;uniqueIndex:ux_milestone_awards_user_course_code,priority:1" json:"userId"`
	CourseID uint          `gorm:"not null;uniqueIndex:ux_milestone_awards_user_course_code,priority:2" json:"courseId"`
	Code     MilestoneCode `gorm:"size:30;not null;uniqueIndex:ux_milestone_awards_user_course_code,priority:3" json:"code"`
}

func (MilestoneAward) TableName() string {
	return "milestone_awards"
}
