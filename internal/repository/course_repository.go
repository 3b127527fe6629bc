package repository

import (
	"academy_backend/internal/model"

	"gorm.io/gorm"
)

type CourseRepository struct {
	DB *gorm.DB
}

func NewCourseRepository(db *gorm.DB) *CourseRepository {
	return &CourseRepository{DB: db}
}

func (r *CourseRepository) Create(course *model.Course) error {
	return r.DB.Create(course).Error
}

func (r *CourseRepository) Save(course *model.Course) error {
	return r.DB.Save(course).Error
}

func (r *CourseRepository) FindByID(id uint) (*model.Course, error) {
	var course model.Course
	err := r.DB.First(&course, id).Error
	return &course, err
}

func (r *CourseRepository) FindWithModules(id uint) (*model.Course, error) {
	var course model.Course
	err := r.DB.
		Preload("Modules", func(db *gorm.DB) *gorm.DB {
			return db.Order("course_modules.module_order ASC")
		}).
		Preload("Modules.Quiz").
		First(&course, id).Error
	return &course, err
}

func (r *CourseRepository) List(page, limit int) ([]model.Course, int64, error) {
	var courses []model.Course
	var total int64

	if err := r.DB.Model(&model.Course{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := r.DB.Order("id ASC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&courses).Error
	return courses, total, err
}

func (r *CourseRepository) CreateModule(mod *model.CourseModule) error {
	return r.DB.Create(mod).Error
}

func (r *CourseRepository) FindModuleByID(id uint) (*model.CourseModule, error) {
	var mod model.CourseModule
	err := r.DB.First(&mod, id).Error
	return &mod, err
}

// FindModules 课程全部模块，按 module_order 升序。
// 入账、推进等事务内的调用必须传事务句柄，事务外传根 DB。
func (r *CourseRepository) FindModules(tx *gorm.DB, courseID uint) ([]model.CourseModule, error) {
	var mods []model.CourseModule
	err := tx.Where("course_id = ?", courseID).
		Order("module_order ASC").
		Find(&mods).Error
	return mods, err
}

// FindRequiredModules 必修（非加分）模块，按 module_order 升序
func (r *CourseRepository) FindRequiredModules(tx *gorm.DB, courseID uint) ([]model.CourseModule, error) {
	var mods []model.CourseModule
	err := tx.Where("course_id = ? AND is_bonus = ?", courseID, false).
		Order("module_order ASC").
		Find(&mods).Error
	return mods, err
}
