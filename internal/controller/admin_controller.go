package controller

import (
	"academy_backend/internal/model"
	"academy_backend/internal/service"
	"academy_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AdminController struct {
	ProgressionService *service.ProgressionService
	CertificateService *service.CertificateService
	AffiliateService   *service.AffiliateService
}

func NewAdminController(
	progressionService *service.ProgressionService,
	certificateService *service.CertificateService,
	affiliateService *service.AffiliateService,
) *AdminController {
	return &AdminController{
		ProgressionService: progressionService,
		CertificateService: certificateService,
		AffiliateService:   affiliateService,
	}
}

// ResetProgress godoc
// @Summary 重置学员的课程进度
// @Description 清空答题记录、模块进度、里程碑与证书后重新初始化解锁状态
// @Tags 管理
// @Produce json
// @Security BearerAuth
// @Param userId path int true "用户ID"
// @Param courseId path int true "课程ID"
// @Success 200 {object} util.Response
// @Router /api/admin/users/{userId}/courses/{courseId}/reset [post]
func (c *AdminController) ResetProgress(ctx *gin.Context) {
	userID := util.MustParseUint(ctx.Param("userId"))
	courseID := util.MustParseUint(ctx.Param("courseId"))

	if err := c.ProgressionService.ResetProgress(userID, courseID); err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"reset": true})
}

// OverrideCertificate godoc
// @Summary 人工补发证书
// @Description 跳过结业条件校验直接颁发，证书会标记为人工补发
// @Tags 管理
// @Produce json
// @Security BearerAuth
// @Param userId path int true "用户ID"
// @Param courseId path int true "课程ID"
// @Success 200 {object} util.Response{data=model.Certificate}
// @Router /api/admin/users/{userId}/courses/{courseId}/certificate [post]
func (c *AdminController) OverrideCertificate(ctx *gin.Context) {
	userID := util.MustParseUint(ctx.Param("userId"))
	courseID := util.MustParseUint(ctx.Param("courseId"))

	cert, err := c.CertificateService.Grant(userID, courseID, true)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, cert)
}

// AffiliateStatusRequest 推广人审核请求
type AffiliateStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=APPROVED REJECTED"`
}

// ReviewAffiliate godoc
// @Summary 审核推广人申请
// @Tags 管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "推广人ID"
// @Param body body AffiliateStatusRequest true "审核结果"
// @Success 200 {object} util.Response
// @Router /api/admin/affiliates/{id}/status [put]
func (c *AdminController) ReviewAffiliate(ctx *gin.Context) {
	var req AffiliateStatusRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	id := util.MustParseUint(ctx.Param("id"))
	if err := c.AffiliateService.SetStatus(id, model.AffiliateStatus(req.Status)); err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"status": req.Status})
}
