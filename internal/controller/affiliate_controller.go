package controller

import (
	"academy_backend/internal/config"
	"academy_backend/internal/service"
	"academy_backend/internal/util"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type AffiliateController struct {
	AffiliateService *service.AffiliateService
	Config           *config.Config
}

func NewAffiliateController(affiliateService *service.AffiliateService, cfg *config.Config) *AffiliateController {
	return &AffiliateController{
		AffiliateService: affiliateService,
		Config:           cfg,
	}
}

// Redirect godoc
// @Summary 推广链接落地
// @Description 记录点击、种下推广 cookie 后重定向到站点首页
// @Tags 推广
// @Param code path string true "推广码"
// @Success 302
// @Router /r/{code} [get]
func (c *AffiliateController) Redirect(ctx *gin.Context) {
	code := ctx.Param("code")

	c.AffiliateService.RecordClick(ctx.Request.Context(), code)

	maxAge := c.Config.Affiliate.CookieDays * 24 * 3600
	ctx.SetCookie(c.Config.Affiliate.CookieName, code, maxAge, "/", "", false, true)

	target := c.Config.Affiliate.RedirectURL
	if target == "" {
		target = "/"
	}
	ctx.Redirect(http.StatusFound, target)
}

// Apply godoc
// @Summary 申请成为推广人
// @Description 生成推广码，等待管理员审核
// @Tags 推广
// @Produce json
// @Security BearerAuth
// @Success 201 {object} util.Response{data=model.Affiliate}
// @Router /api/affiliates/apply [post]
func (c *AffiliateController) Apply(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	affiliate, err := c.AffiliateService.Apply(claims.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Created(ctx, affiliate)
}

// Me godoc
// @Summary 当前用户的推广信息
// @Description 返回推广码、审核状态与累计点击数
// @Tags 推广
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=object}
// @Failure 404 {object} util.Response "尚未申请推广"
// @Router /api/affiliates/me [get]
func (c *AffiliateController) Me(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	affiliate, err := c.AffiliateService.FindByUserID(claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, gin.H{
		"affiliate": affiliate,
		"clicks":    c.AffiliateService.ClickCount(ctx.Request.Context(), affiliate.Code),
	})
}

// Conversions godoc
// @Summary 当前推广人的成交记录
// @Tags 推广
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=[]model.AffiliateConversion}
// @Router /api/affiliates/conversions [get]
func (c *AffiliateController) Conversions(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	affiliate, err := c.AffiliateService.FindByUserID(claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}

	conversions, err := c.AffiliateService.Conversions(affiliate.ID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, conversions)
}

// ListAffiliates godoc
// @Summary 推广人列表
// @Tags 推广管理
// @Produce json
// @Security BearerAuth
// @Param page query int false "页码"
// @Param limit query int false "每页数量"
// @Success 200 {object} util.Response{data=object}
// @Router /api/admin/affiliates [get]
func (c *AffiliateController) ListAffiliates(ctx *gin.Context) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))

	affiliates, total, err := c.AffiliateService.List(page, limit)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"items": affiliates, "total": total})
}
