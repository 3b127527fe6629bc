package service

import (
	"academy_backend/internal/model"
	"academy_backend/internal/repository"
	"academy_backend/internal/util"
	"academy_backend/pkg/logger"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CertificateService 证书每个 (学员, 课程) 至多发一张，重复请求返回已有的。
type CertificateService struct {
	CertificateRepo *repository.CertificateRepository
	CourseRepo      *repository.CourseRepository
	ProgressRepo    *repository.ProgressRepository
	QuizRepo        *repository.QuizRepository
	DB              *gorm.DB
}

func NewCertificateService(
	certificateRepo *repository.CertificateRepository,
	courseRepo *repository.CourseRepository,
	progressRepo *repository.ProgressRepository,
	quizRepo *repository.QuizRepository,
	db *gorm.DB,
) *CertificateService {
	return &CertificateService{
		CertificateRepo: certificateRepo,
		CourseRepo:      courseRepo,
		ProgressRepo:    progressRepo,
		QuizRepo:        quizRepo,
		DB:              db,
	}
}

// Grant 发证。自助路径校验资格；override 是管理员补发通道，跳过校验。
func (s *CertificateService) Grant(userID, courseID uint, override bool) (*model.Certificate, error) {
	if existing, err := s.CertificateRepo.FindByUserAndCourse(userID, courseID); err == nil {
		return existing, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if _, err := s.CourseRepo.FindByID(courseID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrCourseNotFound
		}
		return nil, err
	}

	if !override {
		eligible, err := s.checkEligibility(userID, courseID)
		if err != nil {
			return nil, err
		}
		if !eligible {
			return nil, util.ErrNotEligible
		}
	}

	cert := &model.Certificate{
		UserID:     userID,
		CourseID:   courseID,
		Code:       util.CertificateCode(),
		Overridden: override,
	}
	if err := s.CertificateRepo.Create(cert); err != nil {
		// 并发发证撞唯一索引，返回先落库的那张
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return s.CertificateRepo.FindByUserAndCourse(userID, courseID)
		}
		return nil, err
	}

	logger.Log.Info("certificate issued",
		zap.Uint("user_id", userID),
		zap.Uint("course_id", courseID),
		zap.String("code", cert.Code),
		zap.Bool("overridden", override),
	)
	return cert, nil
}

// checkEligibility 所有必修模块 COMPLETED，且每个带测验的必修模块
// 至少通过过一次。
func (s *CertificateService) checkEligibility(userID, courseID uint) (bool, error) {
	required, err := s.CourseRepo.FindRequiredModules(s.DB, courseID)
	if err != nil {
		return false, err
	}
	if len(required) == 0 {
		return false, nil
	}

	completed, err := s.ProgressRepo.CountCompletedRequired(s.DB, userID, courseID)
	if err != nil {
		return false, err
	}
	if completed < int64(len(required)) {
		return false, nil
	}

	for _, mod := range required {
		quiz, err := s.QuizRepo.FindByModuleID(mod.ID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// 没有测验的模块在别处完成，不在这里设卡
				continue
			}
			return false, err
		}
		passed, err := s.QuizRepo.HasPassed(userID, quiz.ID)
		if err != nil {
			return false, err
		}
		if !passed {
			return false, nil
		}
	}
	return true, nil
}

func (s *CertificateService) ListByUser(userID uint) ([]model.Certificate, error) {
	return s.CertificateRepo.ListByUser(userID)
}

func (s *CertificateService) FindByCode(code string) (*model.Certificate, error) {
	return s.CertificateRepo.FindByCode(code)
}
