package controller

import (
	"academy_backend/internal/service"
	"academy_backend/internal/util"
	"errors"

	"github.com/gin-gonic/gin"
)

type LearningController struct {
	ProgressionService *service.ProgressionService
	CourseService      *service.CourseService
}

func NewLearningController(
	progressionService *service.ProgressionService,
	courseService *service.CourseService,
) *LearningController {
	return &LearningController{
		ProgressionService: progressionService,
		CourseService:      courseService,
	}
}

// GetQuiz godoc
// @Summary 获取测验题目
// @Description 返回题目与选项，不暴露正确答案
// @Tags 学习
// @Produce json
// @Security BearerAuth
// @Param id path int true "测验ID"
// @Success 200 {object} util.Response{data=model.Quiz}
// @Failure 404 {object} util.Response
// @Router /api/quizzes/{id} [get]
func (c *LearningController) GetQuiz(ctx *gin.Context) {
	quiz, err := c.CourseService.GetQuizForStudent(util.MustParseUint(ctx.Param("id")))
	if err != nil {
		if errors.Is(err, util.ErrQuizNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, quiz)
}

// SubmitQuizRequest 测验提交请求
type SubmitQuizRequest struct {
	Answers []service.QuizAnswerInput `json:"answers" binding:"required,min=1"`
}

// SubmitQuiz godoc
// @Summary 提交测验答卷
// @Description 判分并在通过时完成当前模块、解锁下一模块
// @Tags 学习
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "测验ID"
// @Param body body SubmitQuizRequest true "答卷"
// @Success 200 {object} util.Response{data=service.QuizSubmissionResult}
// @Failure 423 {object} util.Response "模块尚未解锁"
// @Router /api/quizzes/{id}/submit [post]
func (c *LearningController) SubmitQuiz(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	var req SubmitQuizRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.ProgressionService.SubmitQuiz(claims.UserID, util.MustParseUint(ctx.Param("id")), req.Answers)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrQuizNotFound):
			util.NotFound(ctx)
		case errors.Is(err, util.ErrModuleLocked):
			util.Error(ctx, 423, "模块尚未解锁")
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, result)
}

// GetProgress godoc
// @Summary 课程学习进度
// @Description 返回各模块解锁状态与已达成的里程碑
// @Tags 学习
// @Produce json
// @Security BearerAuth
// @Param id path int true "课程ID"
// @Success 200 {object} util.Response{data=service.CourseProgress}
// @Failure 404 {object} util.Response "未报名该课程"
// @Router /api/courses/{id}/progress [get]
func (c *LearningController) GetProgress(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	courseID := util.MustParseUint(ctx.Param("id"))

	enrolled, err := c.CourseService.IsEnrolled(claims.UserID, courseID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	if !enrolled {
		util.Error(ctx, 404, util.ErrNotEnrolled.Error())
		return
	}

	progress, err := c.ProgressionService.GetCourseProgress(claims.UserID, courseID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, progress)
}
