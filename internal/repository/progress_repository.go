package repository

import (
	"academy_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProgressRepository struct {
	DB *gorm.DB
}

func NewProgressRepository(db *gorm.DB) *ProgressRepository {
	return &ProgressRepository{DB: db}
}

// BulkCreateIfAbsent 批量建行；已有的行因唯一索引冲突被跳过，不会覆盖既有进度
func (r *ProgressRepository) BulkCreateIfAbsent(tx *gorm.DB, rows []model.ModuleProgress) error {
	if len(rows) == 0 {
		return nil
	}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
}

func (r *ProgressRepository) FindByUserAndModule(tx *gorm.DB, userID, moduleID uint) (*model.ModuleProgress, error) {
	var progress model.ModuleProgress
	err := tx.Where("user_id = ? AND module_id = ?", userID, moduleID).
		First(&progress).Error
	return &progress, err
}

func (r *ProgressRepository) FindByUserAndCourse(userID, courseID uint) ([]model.ModuleProgress, error) {
	var rows []model.ModuleProgress
	err := r.DB.Where("user_id = ? AND course_id = ?", userID, courseID).
		Find(&rows).Error
	return rows, err
}

func (r *ProgressRepository) UpdateStatus(tx *gorm.DB, progressID uint, status model.ProgressStatus) error {
	return tx.Model(&model.ModuleProgress{}).
		Where("id = ?", progressID).
		Update("status", status).Error
}

// CountCompletedRequired 已完成的必修模块数，里程碑百分比以它为分子
func (r *ProgressRepository) CountCompletedRequired(tx *gorm.DB, userID, courseID uint) (int64, error) {
	var count int64
	err := tx.Model(&model.ModuleProgress{}).
		Joins("JOIN course_modules ON course_modules.id = module_progress.module_id").
		Where("module_progress.user_id = ? AND module_progress.course_id = ? AND module_progress.status = ? AND course_modules.is_bonus = ?",
			userID, courseID, model.ProgressCompleted, false).
		Count(&count).Error
	return count, err
}

// DeleteByUserAndCourse 管理员重置进度用，必须跑在外层事务里
func (r *ProgressRepository) DeleteByUserAndCourse(tx *gorm.DB, userID, courseID uint) error {
	return tx.Unscoped().
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Delete(&model.ModuleProgress{}).Error
}
