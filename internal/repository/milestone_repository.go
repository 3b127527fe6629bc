package repository

import (
	"academy_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MilestoneRepository struct {
	DB *gorm.DB
}

func NewMilestoneRepository(db *gorm.DB) *MilestoneRepository {
	return &MilestoneRepository{DB: db}
}

// Award 幂等发放：同一 (学员, 课程, 里程碑) 的重复发放落在唯一索引上被跳过
func (r *MilestoneRepository) Award(tx *gorm.DB, userID, courseID uint, code model.MilestoneCode) error {
	award := model.MilestoneAward{
		UserID:   userID,
		CourseID: courseID,
		Code:     code,
	}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&award).Error
}

func (r *MilestoneRepository) ListByUserAndCourse(userID, courseID uint) ([]model.MilestoneAward, error) {
	var awards []model.MilestoneAward
	err := r.DB.Where("user_id = ? AND course_id = ?", userID, courseID).
		Order("id ASC").
		Find(&awards).Error
	return awards, err
}

func (r *MilestoneRepository) DeleteByUserAndCourse(tx *gorm.DB, userID, courseID uint) error {
	return tx.Unscoped().
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Delete(&model.MilestoneAward{}).Error
}
