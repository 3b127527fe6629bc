package model

// QuizAttempt 只追加，不更新；AttemptNumber 为提交时已有次数 + 1，
// 唯一索引兜底并发提交读到同一计数的情况，冲突方重算后重试。
type QuizAttempt struct {
	BaseModel
	UserID        uint    `gorm:"not null;uniqueIndex:ux_quiz_attempts_user_quiz_no,priority:1" json:"userId"`
	QuizID        uint    `gorm:"not null;uniqueIndex:ux_quiz_attempts_user_quiz_no,priority:2" json:"quizId"`
	AttemptNumber int     `gorm:"not null;uniqueIndex:ux_quiz_attempts_user_quiz_no,priority:3" json:"attemptNumber"`
	Score         float64 `gorm:"not null" json:"score"`
	Passed        bool    `gorm:"not null" json:"passed"`

	Answers []QuizAttemptAnswer `gorm:"foreignKey:AttemptID" json:"answers,omitempty"`
}

func (QuizAttempt) TableName() string {
	return "quiz_attempts"
}

type QuizAttemptAnswer struct {
	BaseModel
	AttemptID        uint `gorm:"index;not null" json:"attemptId"`
	QuestionID       uint `gorm:"not null" json:"questionId"`
	SelectedOptionID uint `gorm:"not null" json:"selectedOptionId"`
	Correct          bool `gorm:"not null" json:"correct"`
}

func (QuizAttemptAnswer) TableName() string {
	return "quiz_attempt_answers"
}
