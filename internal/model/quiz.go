package model

type Quiz struct {
	BaseModel
	ModuleID uint   `gorm:"uniqueIndex;not null" json:"moduleId"`
	Title    string `gorm:"size:255;not null" json:"title"`
	// 测验级及格分覆盖；为空时使用课程默认值
	PassingScore *float64       `json:"passingScore,omitempty"`
	Questions    []QuizQuestion `gorm:"foreignKey:QuizID" json:"questions,omitempty"`
}

func (Quiz) TableName() string {
	return "quizzes"
}

type QuizQuestion struct {
	BaseModel
	QuizID  uint         `gorm:"index;not null" json:"quizId"`
	Text    string       `gorm:"type:text;not null" json:"text"`
	Order   int          `gorm:"column:question_order;default:0" json:"order"`
	Options []QuizOption `gorm:"foreignKey:QuestionID" json:"options,omitempty"`
}

func (QuizQuestion) TableName() string {
	return "quiz_questions"
}

type QuizOption struct {
	BaseModel
	QuestionID uint   `gorm:"index;not null" json:"questionId"`
	Text       string `gorm:"size:500;not null" json:"text"`
	IsCorrect  bool   `gorm:"default:false" json:"-"`
}

func (QuizOption) TableName() string {
	return "quiz_options"
}
