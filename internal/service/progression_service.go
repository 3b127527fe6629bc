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

// ProgressionService 模块解锁状态机：LOCKED → UNLOCKED → COMPLETED，
// 线性推进，不回退。测验判分、模块推进和里程碑发放都在这里。
type ProgressionService struct {
	CourseRepo    *repository.CourseRepository
	ProgressRepo  *repository.ProgressRepository
	QuizRepo      *repository.QuizRepository
	MilestoneRepo *repository.MilestoneRepository
	DB            *gorm.DB
}

func NewProgressionService(
	courseRepo *repository.CourseRepository,
	progressRepo *repository.ProgressRepository,
	quizRepo *repository.QuizRepository,
	milestoneRepo *repository.MilestoneRepository,
	db *gorm.DB,
) *ProgressionService {
	return &ProgressionService{
		CourseRepo:    courseRepo,
		ProgressRepo:  progressRepo,
		QuizRepo:      quizRepo,
		MilestoneRepo: milestoneRepo,
		DB:            db,
	}
}

type QuizAnswerInput struct {
	QuestionID       uint `json:"questionId" binding:"required"`
	SelectedOptionID uint `json:"selectedOptionId" binding:"required"`
}

type QuizSubmissionResult struct {
	Score         float64 `json:"score"`
	Passed        bool    `json:"passed"`
	PassingScore  float64 `json:"passingScore"`
	AttemptNumber int     `json:"attemptNumber"`
	Correct       int     `json:"correct"`
	Total         int     `json:"total"`
}

// InitializeModuleProgress 报名时批量建进度行：第一个必修模块和所有加分
// 模块 UNLOCKED，其余 LOCKED。重跑只补缺行，已有进度不被覆盖。
func (s *ProgressionService) InitializeModuleProgress(tx *gorm.DB, userID, courseID uint) error {
	mods, err := s.CourseRepo.FindModules(tx, courseID)
	if err != nil {
		return err
	}

	rows := make([]model.ModuleProgress, 0, len(mods))
	firstRequired := true
	for _, mod := range mods {
		status := model.ProgressLocked
		if mod.IsBonus {
			status = model.ProgressUnlocked
		} else if firstRequired {
			status = model.ProgressUnlocked
			firstRequired = false
		}
		rows = append(rows, model.ModuleProgress{
			UserID:   userID,
			ModuleID: mod.ID,
			CourseID: courseID,
			Status:   status,
		})
	}

	return s.ProgressRepo.BulkCreateIfAbsent(tx, rows)
}

// SubmitQuiz 判分并落一条提交记录；通过且模块处于 UNLOCKED 时推进模块。
// 提交、推进、里程碑发放在同一个事务里。
func (s *ProgressionService) SubmitQuiz(userID, quizID uint, answers []QuizAnswerInput) (*QuizSubmissionResult, error) {
	quiz, err := s.QuizRepo.FindByID(quizID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrQuizNotFound
		}
		return nil, err
	}

	module, err := s.CourseRepo.FindModuleByID(quiz.ModuleID)
	if err != nil {
		return nil, err
	}
	course, err := s.CourseRepo.FindByID(module.CourseID)
	if err != nil {
		return nil, err
	}

	progress, err := s.ProgressRepo.FindByUserAndModule(s.DB, userID, module.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// 没有进度行 = 未报名或未初始化，与 LOCKED 同等对待
			return nil, util.ErrModuleLocked
		}
		return nil, err
	}
	if progress.Status == model.ProgressLocked {
		return nil, util.ErrModuleLocked
	}

	correct, answerRows := scoreAnswers(quiz, answers)
	total := len(quiz.Questions)
	score := 0.0
	if total > 0 {
		score = util.Round2(float64(correct) / float64(total) * 100)
	}

	threshold := course.PassingScore
	if quiz.PassingScore != nil {
		threshold = *quiz.PassingScore
	}
	passed := score >= threshold

	result := &QuizSubmissionResult{
		Score:        score,
		Passed:       passed,
		PassingScore: threshold,
		Correct:      correct,
		Total:        total,
	}

	// 并发提交会读到同一个已有次数，撞唯一索引的一方重新计数再试
	for retries := 0; ; retries++ {
		err = s.DB.Transaction(func(tx *gorm.DB) error {
			prior, err := s.QuizRepo.CountAttempts(tx, userID, quizID)
			if err != nil {
				return err
			}

			attempt := &model.QuizAttempt{
				UserID:        userID,
				QuizID:        quizID,
				AttemptNumber: int(prior) + 1,
				Score:         score,
				Passed:        passed,
				Answers:       answerRows,
			}
			if err := s.QuizRepo.CreateAttempt(tx, attempt); err != nil {
				return err
			}
			result.AttemptNumber = attempt.AttemptNumber

			if passed && progress.Status == model.ProgressUnlocked {
				if err := s.advanceModule(tx, userID, progress, module, course.ID); err != nil {
					return err
				}
			}
			return nil
		})
		if errors.Is(err, gorm.ErrDuplicatedKey) && retries < 2 {
			continue
		}
		break
	}
	if err != nil {
		return nil, err
	}

	logger.Log.Info("quiz submitted",
		zap.Uint("user_id", userID),
		zap.Uint("quiz_id", quizID),
		zap.Float64("score", score),
		zap.Bool("passed", passed),
		zap.Int("attempt", result.AttemptNumber),
	)
	return result, nil
}

// advanceModule 当前模块置 COMPLETED，按课程顺序解锁下一个必修模块
// （加分模块从不作为"下一个"），然后评估里程碑。
func (s *ProgressionService) advanceModule(tx *gorm.DB, userID uint, progress *model.ModuleProgress, module *model.CourseModule, courseID uint) error {
	if err := s.ProgressRepo.UpdateStatus(tx, progress.ID, model.ProgressCompleted); err != nil {
		return err
	}

	if !module.IsBonus {
		required, err := s.CourseRepo.FindRequiredModules(tx, courseID)
		if err != nil {
			return err
		}
		for i, mod := range required {
			if mod.ID != module.ID {
				continue
			}
			if i+1 < len(required) {
				next, err := s.ProgressRepo.FindByUserAndModule(tx, userID, required[i+1].ID)
				if err != nil {
					return err
				}
				if next.Status == model.ProgressLocked {
					if err := s.ProgressRepo.UpdateStatus(tx, next.ID, model.ProgressUnlocked); err != nil {
						return err
					}
				}
			}
			break
		}
	}

	return s.evaluateMilestones(tx, userID, courseID)
}

// evaluateMilestones 每次推进后独立评估各档：档位是半开区间，
// 不追踪“上一次的百分比”，一次跨多档只会拿到当前档（管理员批量
// 补完进度时会跳过中间档，这是既定行为）。发放靠唯一索引幂等。
func (s *ProgressionService) evaluateMilestones(tx *gorm.DB, userID, courseID uint) error {
	required, err := s.CourseRepo.FindRequiredModules(tx, courseID)
	if err != nil {
		return err
	}
	if len(required) == 0 {
		return nil
	}

	completed, err := s.ProgressRepo.CountCompletedRequired(tx, userID, courseID)
	if err != nil {
		return err
	}

	if completed == 1 {
		if err := s.MilestoneRepo.Award(tx, userID, courseID, model.MilestoneFirstModule); err != nil {
			return err
		}
	}

	pct := float64(completed) / float64(len(required)) * 100
	var band model.MilestoneCode
	switch {
	case pct >= 100:
		band = model.MilestoneComplete
	case pct >= 75:
		band = model.MilestoneThreeQuarter
	case pct >= 50:
		band = model.MilestoneHalf
	case pct >= 25:
		band = model.MilestoneQuarter
	}
	if band != "" {
		if err := s.MilestoneRepo.Award(tx, userID, courseID, band); err != nil {
			return err
		}
	}

	anyPass, err := s.QuizRepo.HasAnyPass(tx, userID)
	if err != nil {
		return err
	}
	if anyPass {
		if err := s.MilestoneRepo.Award(tx, userID, courseID, model.MilestoneFirstQuizPass); err != nil {
			return err
		}
	}
	return nil
}

type CourseProgress struct {
	CourseID   uint                   `json:"courseId"`
	Modules    []ModuleProgressView   `json:"modules"`
	Milestones []model.MilestoneAward `json:"milestones"`
}

type ModuleProgressView struct {
	ModuleID uint                 `json:"moduleId"`
	Title    string               `json:"title"`
	Order    int                  `json:"order"`
	IsBonus  bool                 `json:"isBonus"`
	Status   model.ProgressStatus `json:"status"`
}

// GetCourseProgress 学员的课程进度总览
func (s *ProgressionService) GetCourseProgress(userID, courseID uint) (*CourseProgress, error) {
	mods, err := s.CourseRepo.FindModules(s.DB, courseID)
	if err != nil {
		return nil, err
	}
	if len(mods) == 0 {
		return nil, util.ErrCourseNotFound
	}

	rows, err := s.ProgressRepo.FindByUserAndCourse(userID, courseID)
	if err != nil {
		return nil, err
	}
	byModule := make(map[uint]model.ProgressStatus, len(rows))
	for _, row := range rows {
		byModule[row.ModuleID] = row.Status
	}

	views := make([]ModuleProgressView, len(mods))
	for i, mod := range mods {
		status, ok := byModule[mod.ID]
		if !ok {
			status = model.ProgressLocked
		}
		views[i] = ModuleProgressView{
			ModuleID: mod.ID,
			Title:    mod.Title,
			Order:    mod.Order,
			IsBonus:  mod.IsBonus,
			Status:   status,
		}
	}

	awards, err := s.MilestoneRepo.ListByUserAndCourse(userID, courseID)
	if err != nil {
		return nil, err
	}

	return &CourseProgress{
		CourseID:   courseID,
		Modules:    views,
		Milestones: awards,
	}, nil
}

// ResetProgress 管理员重置：进度、提交记录、里程碑、证书一并清掉后
// 重新初始化进度行——五张表的写入必须全有或全无。
func (s *ProgressionService) ResetProgress(userID, courseID uint) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		var quizIDs []uint
		err := tx.Model(&model.Quiz{}).
			Joins("JOIN course_modules ON course_modules.id = quizzes.module_id").
			Where("course_modules.course_id = ?", courseID).
			Pluck("quizzes.id", &quizIDs).Error
		if err != nil {
			return err
		}

		if len(quizIDs) > 0 {
			var attemptIDs []uint
			err = tx.Model(&model.QuizAttempt{}).
				Where("user_id = ? AND quiz_id IN ?", userID, quizIDs).
				Pluck("id", &attemptIDs).Error
			if err != nil {
				return err
			}
			if len(attemptIDs) > 0 {
				if err := tx.Unscoped().Where("attempt_id IN ?", attemptIDs).
					Delete(&model.QuizAttemptAnswer{}).Error; err != nil {
					return err
				}
				if err := tx.Unscoped().Where("id IN ?", attemptIDs).
					Delete(&model.QuizAttempt{}).Error; err != nil {
					return err
				}
			}
		}

		if err := s.ProgressRepo.DeleteByUserAndCourse(tx, userID, courseID); err != nil {
			return err
		}
		if err := s.MilestoneRepo.DeleteByUserAndCourse(tx, userID, courseID); err != nil {
			return err
		}
		if err := tx.Unscoped().Where("user_id = ? AND course_id = ?", userID, courseID).
			Delete(&model.Certificate{}).Error; err != nil {
			return err
		}

		return s.InitializeModuleProgress(tx, userID, courseID)
	})
}

func scoreAnswers(quiz *model.Quiz, answers []QuizAnswerInput) (int, []model.QuizAttemptAnswer) {
	selected := make(map[uint]uint, len(answers))
	for _, a := range answers {
		selected[a.QuestionID] = a.SelectedOptionID
	}

	correct := 0
	rows := make([]model.QuizAttemptAnswer, 0, len(quiz.Questions))
	for _, q := range quiz.Questions {
		sel, answered := selected[q.ID]
		ok := false
		if answered {
			for _, opt := range q.Options {
				if opt.ID == sel && opt.IsCorrect {
					ok = true
					break
				}
			}
		}
		if ok {
			correct++
		}
		if answered {
			rows = append(rows, model.QuizAttemptAnswer{
				QuestionID:       q.ID,
				SelectedOptionID: sel,
				Correct:          ok,
			})
		}
	}
	return correct, rows
}
