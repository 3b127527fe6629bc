package controller

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"academy_backend/internal/config"
	"academy_backend/internal/model"
	"academy_backend/internal/repository"
	"academy_backend/internal/service"
	"academy_backend/pkg/database"
	"academy_backend/pkg/logger"

	"github.com/gin-gonic/gin"
	stripe "github.com/stripe/stripe-go/v80"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const testWebhookSecret = "whsec_test_secret"

func newWebhookRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger.Log = zap.NewNop()

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:ctrl_test_%s?mode=memory&cache=shared", t.Name())), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, database.Migrate(db))

	cfg := &config.Config{}
	cfg.Payment.WebhookSecret = testWebhookSecret

	userRepo := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	quizRepo := repository.NewQuizRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	progressRepo := repository.NewProgressRepository(db)
	milestoneRepo := repository.NewMilestoneRepository(db)
	affiliateRepo := repository.NewAffiliateRepository(db)

	progression := service.NewProgressionService(courseRepo, progressRepo, quizRepo, milestoneRepo, db)
	affiliate := service.NewAffiliateService(affiliateRepo, userRepo, &cfg.Affiliate, nil)
	payment := service.NewPaymentService(paymentRepo, courseRepo, userRepo, enrollmentRepo,
		progression, affiliate, nil, db)

	ctrl := NewPaymentController(payment, paymentRepo, cfg, logger.Log)

	router := gin.New()
	router.POST("/api/payments/webhook", ctrl.HandleWebhook)
	return router, db
}

// stripeSignature 按 Stripe 的 v1 签名方案对负载签名
func stripeSignature(payload []byte, secret string) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

// eventPayload 构造带匹配 api_version 的事件体，否则签名校验后会被版本检查拒绝
func eventPayload(id, eventType, object string) string {
	return fmt.Sprintf(`{"id":%q,"api_version":%q,"type":%q,"data":{"object":%s}}`,
		id, stripe.APIVersion, eventType, object)
}

func postWebhook(router *gin.Engine, payload, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/payments/webhook", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("Stripe-Signature", signature)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	router, db := newWebhookRouter(t)
	payload := eventPayload("evt_bad", "checkout.session.completed", `{"id":"cs_1"}`)

	w := postWebhook(router, payload, "t=1,v1=deadbeef")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postWebhook(router, payload, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// 签名失败的事件不落库
	var count int64
	require.NoError(t, db.Model(&model.WebhookEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestWebhookAcksUnknownEventType(t *testing.T) {
	router, db := newWebhookRouter(t)
	payload := eventPayload("evt_odd", "charge.refunded", `{}`)

	w := postWebhook(router, payload, stripeSignature([]byte(payload), testWebhookSecret))
	assert.Equal(t, http.StatusOK, w.Code)

	var event model.WebhookEvent
	require.NoError(t, db.Where("event_id = ?", "evt_odd").First(&event).Error)
	assert.Equal(t, "charge.refunded", event.EventType)
	assert.NotNil(t, event.ProcessedAt)
}

// 处理失败返回 5xx 的事件在网关重试时必须重新处理，而不是被当成重复投递
func TestWebhookRedeliveryAfterFailureReprocesses(t *testing.T) {
	router, db := newWebhookRouter(t)

	require.NoError(t, db.Create(&model.User{Name: "s", Email: "s@t.dev", Password: "x", Role: model.Student}).Error)
	course := &model.Course{Title: "Go", PriceCents: 10000, Currency: "usd", PassingScore: 60, Published: true}
	require.NoError(t, db.Create(course).Error)
	payment := &model.Payment{
		UserID: 1, CourseID: course.ID, CheckoutID: "cs_retry",
		Type: model.PaymentOneTime, Status: model.PaymentPending,
		AmountTotal: 10000, InstallmentsTotal: 1,
	}
	require.NoError(t, db.Create(payment).Error)

	payload := eventPayload("evt_retry", "checkout.session.completed", `{"id":"cs_retry"}`)

	// 报名表临时不可写，入账失败，要求网关重试
	require.NoError(t, db.Exec("ALTER TABLE enrollments RENAME TO enrollments_bak").Error)
	w := postWebhook(router, payload, stripeSignature([]byte(payload), testWebhookSecret))
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var event model.WebhookEvent
	require.NoError(t, db.Where("event_id = ?", "evt_retry").First(&event).Error)
	assert.NotEmpty(t, event.ProcessingError)

	// 故障恢复后的重试必须真正重新处理
	require.NoError(t, db.Exec("ALTER TABLE enrollments_bak RENAME TO enrollments").Error)
	w = postWebhook(router, payload, stripeSignature([]byte(payload), testWebhookSecret))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "duplicate")

	require.NoError(t, db.Where("checkout_id = ?", "cs_retry").First(payment).Error)
	assert.Equal(t, model.PaymentCompleted, payment.Status)
	var enrollments int64
	require.NoError(t, db.Model(&model.Enrollment{}).Where("user_id = ? AND course_id = ?", 1, course.ID).Count(&enrollments).Error)
	assert.Equal(t, int64(1), enrollments)

	require.NoError(t, db.Where("event_id = ?", "evt_retry").First(&event).Error)
	assert.Empty(t, event.ProcessingError)

	// 处理成功之后的再次投递才算重复
	w = postWebhook(router, payload, stripeSignature([]byte(payload), testWebhookSecret))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "duplicate")

	var events int64
	require.NoError(t, db.Model(&model.WebhookEvent{}).Where("event_id = ?", "evt_retry").Count(&events).Error)
	assert.Equal(t, int64(1), events)
}

func TestWebhookDuplicateDeliveryShortCircuits(t *testing.T) {
	router, db := newWebhookRouter(t)
	// 未知 checkout 的 completed 事件按空转确认
	payload := eventPayload("evt_dup", "checkout.session.completed", `{"id":"cs_unknown"}`)

	w := postWebhook(router, payload, stripeSignature([]byte(payload), testWebhookSecret))
	assert.Equal(t, http.StatusOK, w.Code)

	w = postWebhook(router, payload, stripeSignature([]byte(payload), testWebhookSecret))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "duplicate")

	var count int64
	require.NoError(t, db.Model(&model.WebhookEvent{}).Where("event_id = ?", "evt_dup").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
