package controller

import (
	"academy_backend/internal/config"
	"academy_backend/internal/model"
	"academy_backend/internal/repository"
	"academy_backend/internal/service"
	"academy_backend/internal/util"
	"academy_backend/pkg/monitoring"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	stripe "github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/webhook"
	"go.uber.org/zap"
)

// webhook 请求体上限，Stripe 事件远小于该值
const maxWebhookBodyBytes = 1 << 20

type PaymentController struct {
	PaymentService *service.PaymentService
	PaymentRepo    *repository.PaymentRepository
	Config         *config.Config
	Logger         *zap.Logger
}

func NewPaymentController(
	paymentService *service.PaymentService,
	paymentRepo *repository.PaymentRepository,
	cfg *config.Config,
	logger *zap.Logger,
) *PaymentController {
	return &PaymentController{
		PaymentService: paymentService,
		PaymentRepo:    paymentRepo,
		Config:         cfg,
		Logger:         logger,
	}
}

// CheckoutRequest 创建结账会话请求
type CheckoutRequest struct {
	CourseID    uint `json:"courseId" binding:"required"`
	Installment bool `json:"installment"`
}

// CreateCheckout godoc
// @Summary 创建结账会话
// @Description 为当前用户创建课程购买的支付会话，返回跳转地址
// @Tags 支付
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body CheckoutRequest true "购买信息"
// @Success 200 {object} util.Response{data=object} "checkoutId 与跳转 url"
// @Failure 409 {object} util.Response "课程已购买"
// @Router /api/payments/checkout [post]
func (c *PaymentController) CreateCheckout(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	var req CheckoutRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	session, err := c.PaymentService.CreateCheckout(claims.UserID, req.CourseID, req.Installment)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrCourseNotFound):
			util.NotFound(ctx)
		case errors.Is(err, util.ErrUserNotFound):
			util.Unauthorized(ctx)
		case errors.Is(err, util.ErrAlreadyEnrolled):
			util.Error(ctx, 409, "课程已购买")
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, gin.H{"checkoutId": session.ID, "url": session.URL})
}

// VerifyRequest 回跳主动核验请求
type VerifyRequest struct {
	CheckoutID string `json:"checkoutId" binding:"required"`
}

// VerifyCheckout godoc
// @Summary 主动核验结账结果
// @Description 支付成功页回跳时调用，向网关拉取会话状态兜底入账，与 webhook 幂等互补
// @Tags 支付
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body VerifyRequest true "会话标识"
// @Success 200 {object} util.Response{data=model.Payment}
// @Failure 402 {object} util.Response "会话尚未支付"
// @Failure 403 {object} util.Response "会话不属于当前用户"
// @Router /api/payments/verify [post]
func (c *PaymentController) VerifyCheckout(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	var req VerifyRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	payment, err := c.PaymentService.VerifyCheckout(claims.UserID, req.CheckoutID)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrPaymentNotFound):
			util.NotFound(ctx)
		case errors.Is(err, util.ErrPermissionDenied):
			util.Forbidden(ctx)
		case errors.Is(err, util.ErrCheckoutNotPaid):
			util.Error(ctx, http.StatusPaymentRequired, "支付尚未完成")
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, payment)
}

// ListPayments godoc
// @Summary 当前用户的支付记录
// @Tags 支付
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=[]model.Payment}
// @Router /api/payments [get]
func (c *PaymentController) ListPayments(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	payments, err := c.PaymentService.ListByUser(claims.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, payments)
}

// HandleWebhook godoc
// @Summary Stripe webhook 入口
// @Description 校验签名后按事件类型对账，重复投递幂等空转
// @Tags 支付
// @Accept json
// @Produce json
// @Success 200 {object} util.Response
// @Failure 400 {object} util.Response "签名校验失败"
// @Router /api/payments/webhook [post]
func (c *PaymentController) HandleWebhook(ctx *gin.Context) {
	payload, err := io.ReadAll(http.MaxBytesReader(ctx.Writer, ctx.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		monitoring.WebhookEventCounter.WithLabelValues("unknown", "read_error").Inc()
		util.BadRequest(ctx, "无法读取请求体")
		return
	}

	event, err := webhook.ConstructEvent(payload, ctx.GetHeader("Stripe-Signature"), c.Config.Payment.WebhookSecret)
	if err != nil {
		c.Logger.Warn("webhook 签名校验失败", zap.Error(err))
		monitoring.WebhookEventCounter.WithLabelValues("unknown", "bad_signature").Inc()
		util.Error(ctx, http.StatusBadRequest, util.ErrInvalidSignature.Error())
		return
	}

	eventType := string(event.Type)

	stored, created, err := c.PaymentRepo.RecordEvent(&model.WebhookEvent{
		Provider:  "stripe",
		EventID:   event.ID,
		EventType: eventType,
		Payload:   string(payload),
	})
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	// 只有上次成功处理完的事件才按重复投递确认；上次失败（或中断）的
	// 投递返回过 5xx，网关这次重试必须真正重新处理
	if !created && stored.Processed() {
		monitoring.WebhookEventCounter.WithLabelValues(eventType, "duplicate").Inc()
		util.Success(ctx, gin.H{"received": true, "duplicate": true})
		return
	}

	processErr := c.dispatchEvent(&event)
	if mErr := c.PaymentRepo.MarkEventProcessed(event.ID, processErr); mErr != nil {
		c.Logger.Error("webhook 事件状态更新失败", zap.String("event_id", event.ID), zap.Error(mErr))
	}

	if processErr != nil {
		c.Logger.Error("webhook 事件处理失败",
			zap.String("event_id", event.ID),
			zap.String("event_type", eventType),
			zap.Error(processErr))
		monitoring.WebhookEventCounter.WithLabelValues(eventType, "error").Inc()
		// 返回 5xx 触发网关重试
		util.InternalServerError(ctx)
		return
	}

	monitoring.WebhookEventCounter.WithLabelValues(eventType, "ok").Inc()
	util.Success(ctx, gin.H{"received": true})
}

func (c *PaymentController) dispatchEvent(event *stripe.Event) error {
	switch event.Type {
	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return err
		}
		customerID := ""
		if session.Customer != nil {
			customerID = session.Customer.ID
		}
		subscriptionID := ""
		if session.Subscription != nil {
			subscriptionID = session.Subscription.ID
		}
		return c.PaymentService.ReconcileCheckoutCompleted(session.ID, customerID, subscriptionID)

	case "invoice.paid":
		var invoice stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			return err
		}
		if invoice.Subscription == nil {
			// 非分期账单，与课程支付无关
			return nil
		}
		return c.PaymentService.ReconcileInstallmentCharge(invoice.Subscription.ID, string(invoice.BillingReason))

	case "invoice.payment_failed":
		var invoice stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			return err
		}
		if invoice.Subscription == nil {
			return nil
		}
		return c.PaymentService.ReconcilePaymentFailed(invoice.Subscription.ID)

	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return err
		}
		return c.PaymentService.ReconcileSubscriptionCancelled(sub.ID)

	default:
		// 未订阅的事件类型，确认但不处理
		c.Logger.Info("忽略未处理的 webhook 事件", zap.String("event_type", string(event.Type)))
		return nil
	}
}
