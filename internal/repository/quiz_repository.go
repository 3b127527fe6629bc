package repository

import (
	"academy_backend/internal/model"

	"gorm.io/gorm"
)

type QuizRepository struct {
	DB *gorm.DB
}

func NewQuizRepository(db *gorm.DB) *QuizRepository {
	return &QuizRepository{DB: db}
}

func (r *QuizRepository) Create(quiz *model.Quiz) error {
	return r.DB.Create(quiz).Error
}

func (r *QuizRepository) FindByID(id uint) (*model.Quiz, error) {
	var quiz model.Quiz
	err := r.DB.
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("quiz_questions.question_order ASC")
		}).
		Preload("Questions.Options").
		First(&quiz, id).Error
	return &quiz, err
}

func (r *QuizRepository) FindByModuleID(moduleID uint) (*model.Quiz, error) {
	var quiz model.Quiz
	err := r.DB.Where("module_id = ?", moduleID).First(&quiz).Error
	return &quiz, err
}

// CountAttempts 某学员在某测验上的历史提交次数
func (r *QuizRepository) CountAttempts(tx *gorm.DB, userID, quizID uint) (int64, error) {
	var count int64
	err := tx.Model(&model.QuizAttempt{}).
		Where("user_id = ? AND quiz_id = ?", userID, quizID).
		Count(&count).Error
	return count, err
}

func (r *QuizRepository) CreateAttempt(tx *gorm.DB, attempt *model.QuizAttempt) error {
	return tx.Create(attempt).Error
}

// HasPassed 是否至少通过过一次
func (r *QuizRepository) HasPassed(userID, quizID uint) (bool, error) {
	var count int64
	err := r.DB.Model(&model.QuizAttempt{}).
		Where("user_id = ? AND quiz_id = ? AND passed = ?", userID, quizID, true).
		Count(&count).Error
	return count > 0, err
}

// HasAnyPass 学员是否通过过任何测验（FIRST_QUIZ_PASS 里程碑用）
func (r *QuizRepository) HasAnyPass(tx *gorm.DB, userID uint) (bool, error) {
	var count int64
	err := tx.Model(&model.QuizAttempt{}).
		Where("user_id = ? AND passed = ?", userID, true).
		Count(&count).Error
	return count > 0, err
}

func (r *QuizRepository) ListAttempts(userID, quizID uint) ([]model.QuizAttempt, error) {
	var attempts []model.QuizAttempt
	err := r.DB.Where("user_id = ? AND quiz_id = ?", userID, quizID).
		Order("attempt_number ASC").
		Find(&attempts).Error
	return attempts, err
}
