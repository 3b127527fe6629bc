package service

import (
	"academy_backend/internal/model"
	"academy_backend/internal/repository"
	"academy_backend/internal/util"
	"errors"

	"gorm.io/gorm"
)

// CourseService 课程目录维护（管理员）和学员侧课程视图
type CourseService struct {
	CourseRepo     *repository.CourseRepository
	QuizRepo       *repository.QuizRepository
	EnrollmentRepo *repository.EnrollmentRepository
	DB             *gorm.DB
}

func NewCourseService(
	courseRepo *repository.CourseRepository,
	quizRepo *repository.QuizRepository,
	enrollmentRepo *repository.EnrollmentRepository,
	db *gorm.DB,
) *CourseService {
	return &CourseService{
		CourseRepo:     courseRepo,
		QuizRepo:       quizRepo,
		EnrollmentRepo: enrollmentRepo,
		DB:             db,
	}
}

type CourseRequest struct {
	Title        string  `json:"title" binding:"required"`
	Description  string  `json:"description"`
	PriceCents   int64   `json:"priceCents" binding:"required"`
	Currency     string  `json:"currency"`
	Installments int     `json:"installments"`
	PassingScore float64 `json:"passingScore"`
	Published    bool    `json:"published"`
}

type ModuleRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	Order       int    `json:"order"`
	IsBonus     bool   `json:"isBonus"`
}

type QuizRequest struct {
	Title        string            `json:"title" binding:"required"`
	PassingScore *float64          `json:"passingScore"`
	Questions    []QuestionRequest `json:"questions" binding:"required,min=1"`
}

type QuestionRequest struct {
	Text    string   `json:"text" binding:"required"`
	Options []string `json:"options" binding:"required,min=2"`
	// Options 里正确选项的下标
	CorrectIndex int `json:"correctIndex"`
}

func (s *CourseService) CreateCourse(req CourseRequest) (*model.Course, error) {
	course := &model.Course{
		Title:        req.Title,
		Description:  req.Description,
		PriceCents:   req.PriceCents,
		Currency:     req.Currency,
		Installments: req.Installments,
		PassingScore: req.PassingScore,
		Published:    req.Published,
	}
	if course.Currency == "" {
		course.Currency = "usd"
	}
	if course.PassingScore <= 0 {
		course.PassingScore = 60
	}

	if err := s.CourseRepo.Create(course); err != nil {
		return nil, err
	}
	return course, nil
}

func (s *CourseService) AddModule(courseID uint, req ModuleRequest) (*model.CourseModule, error) {
	if _, err := s.CourseRepo.FindByID(courseID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrCourseNotFound
		}
		return nil, err
	}

	mod := &model.CourseModule{
		CourseID:    courseID,
		Title:       req.Title,
		Description: req.Description,
		Order:       req.Order,
		IsBonus:     req.IsBonus,
	}
	if err := s.CourseRepo.CreateModule(mod); err != nil {
		return nil, err
	}
	return mod, nil
}

// AddQuiz 建测验连同题目和选项一次落库
func (s *CourseService) AddQuiz(moduleID uint, req QuizRequest) (*model.Quiz, error) {
	if _, err := s.CourseRepo.FindModuleByID(moduleID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrCourseNotFound
		}
		return nil, err
	}

	quiz := &model.Quiz{
		ModuleID:     moduleID,
		Title:        req.Title,
		PassingScore: req.PassingScore,
	}
	for i, q := range req.Questions {
		question := model.QuizQuestion{
			Text:  q.Text,
			Order: i,
		}
		for j, opt := range q.Options {
			question.Options = append(question.Options, model.QuizOption{
				Text:      opt,
				IsCorrect: j == q.CorrectIndex,
			})
		}
		quiz.Questions = append(quiz.Questions, question)
	}

	if err := s.QuizRepo.Create(quiz); err != nil {
		return nil, err
	}
	return quiz, nil
}

func (s *CourseService) GetCourse(id uint) (*model.Course, error) {
	course, err := s.CourseRepo.FindWithModules(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrCourseNotFound
		}
		return nil, err
	}
	return course, nil
}

func (s *CourseService) ListCourses(page, limit int) ([]model.Course, int64, error) {
	return s.CourseRepo.List(page, limit)
}

// GetQuizForStudent 学员视图：不回传每个选项的 IsCorrect（json 已隐藏，
// 这里再确认测验存在并归属有效模块）
func (s *CourseService) GetQuizForStudent(quizID uint) (*model.Quiz, error) {
	quiz, err := s.QuizRepo.FindByID(quizID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrQuizNotFound
		}
		return nil, err
	}
	return quiz, nil
}

func (s *CourseService) IsEnrolled(userID, courseID uint) (bool, error) {
	return s.EnrollmentRepo.Exists(userID, courseID)
}
