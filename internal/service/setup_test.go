package service

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"academy_backend/internal/config"
	"academy_backend/internal/model"
	"academy_backend/internal/repository"
	"academy_backend/pkg/database"
	"academy_backend/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func TestMain(m *testing.M) {
	logger.Log = zap.NewNop()
	os.Exit(m.Run())
}

var testDBSeq int64

// newTestDB 每个测试一个独立的内存库；单连接避免 sqlite 内存库按连接隔离
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:svc_test_%d?mode=memory&cache=shared", atomic.AddInt64(&testDBSeq, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type testEnv struct {
	db *gorm.DB

	userRepo        *repository.UserRepository
	courseRepo      *repository.CourseRepository
	quizRepo        *repository.QuizRepository
	paymentRepo     *repository.PaymentRepository
	enrollmentRepo  *repository.EnrollmentRepository
	progressRepo    *repository.ProgressRepository
	milestoneRepo   *repository.MilestoneRepository
	certificateRepo *repository.CertificateRepository
	affiliateRepo   *repository.AffiliateRepository

	gateway     *fakeGateway
	payment     *PaymentService
	progression *ProgressionService
	certificate *CertificateService
	affiliate   *AffiliateService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newTestDB(t)

	env := &testEnv{
		db:              db,
		userRepo:        repository.NewUserRepository(db),
		courseRepo:      repository.NewCourseRepository(db),
		quizRepo:        repository.NewQuizRepository(db),
		paymentRepo:     repository.NewPaymentRepository(db),
		enrollmentRepo:  repository.NewEnrollmentRepository(db),
		progressRepo:    repository.NewProgressRepository(db),
		milestoneRepo:   repository.NewMilestoneRepository(db),
		certificateRepo: repository.NewCertificateRepository(db),
		affiliateRepo:   repository.NewAffiliateRepository(db),
		gateway:         newFakeGateway(),
	}

	affCfg := &config.AffiliateConfig{
		CookieName:            "ref_code",
		CookieDays:            30,
		DefaultCommissionRate: 20,
	}
	env.affiliate = NewAffiliateService(env.affiliateRepo, env.userRepo, affCfg, nil)
	env.progression = NewProgressionService(env.courseRepo, env.progressRepo, env.quizRepo, env.milestoneRepo, db)
	env.certificate = NewCertificateService(env.certificateRepo, env.courseRepo, env.progressRepo, env.quizRepo, db)
	env.payment = NewPaymentService(env.paymentRepo, env.courseRepo, env.userRepo, env.enrollmentRepo,
		env.progression, env.affiliate, env.gateway, db)
	return env
}

// fakeGateway 内存版支付网关，按会话记录状态，取消通过 channel 暴露给测试
type fakeGateway struct {
	mu        sync.Mutex
	seq       int
	sessions  map[string]*CheckoutSession
	paid      map[string]bool
	Cancelled chan string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		sessions:  make(map[string]*CheckoutSession),
		paid:      make(map[string]bool),
		Cancelled: make(chan string, 8),
	}
}

func (g *fakeGateway) CreateCheckoutSession(user *model.User, course *model.Course, installment bool) (*CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	sess := &CheckoutSession{
		ID:         fmt.Sprintf("cs_test_%d", g.seq),
		URL:        fmt.Sprintf("https://pay.example/cs_test_%d", g.seq),
		CustomerID: fmt.Sprintf("cus_%d", user.ID),
	}
	if installment {
		sess.SubscriptionID = fmt.Sprintf("sub_test_%d", g.seq)
	}
	g.sessions[sess.ID] = sess
	return sess, nil
}

func (g *fakeGateway) RetrieveCheckoutSession(checkoutID string) (*CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	sess, ok := g.sessions[checkoutID]
	if !ok {
		return nil, fmt.Errorf("no such session: %s", checkoutID)
	}
	out := *sess
	out.PaymentStatus = "unpaid"
	if g.paid[checkoutID] {
		out.PaymentStatus = "paid"
	}
	return &out, nil
}

func (g *fakeGateway) CancelSubscription(subscriptionID string) error {
	g.Cancelled <- subscriptionID
	return nil
}

func (g *fakeGateway) markPaid(checkoutID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.paid[checkoutID] = true
}

func seedUser(t *testing.T, db *gorm.DB, email string) *model.User {
	t.Helper()
	user := &model.User{
		Name:     "Test Student",
		Email:    email,
		Password: "hashed",
		Role:     model.Student,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func seedCourse(t *testing.T, db *gorm.DB, priceCents int64, installments int, passingScore float64) *model.Course {
	t.Helper()
	course := &model.Course{
		Title:        "Go from Zero",
		PriceCents:   priceCents,
		Currency:     "usd",
		Installments: installments,
		PassingScore: passingScore,
		Published:    true,
	}
	if err := db.Create(course).Error; err != nil {
		t.Fatalf("seed course: %v", err)
	}
	return course
}

func seedModule(t *testing.T, db *gorm.DB, course *model.Course, order int, bonus bool) *model.CourseModule {
	t.Helper()
	mod := &model.CourseModule{
		CourseID: course.ID,
		Title:    fmt.Sprintf("Module %d", order),
		Order:    order,
		IsBonus:  bonus,
	}
	if err := db.Create(mod).Error; err != nil {
		t.Fatalf("seed module: %v", err)
	}
	return mod
}

// seedQuiz 每题两个选项，第一个为正确答案
func seedQuiz(t *testing.T, db *gorm.DB, mod *model.CourseModule, questions int, passingOverride *float64) *model.Quiz {
	t.Helper()
	quiz := &model.Quiz{
		ModuleID:     mod.ID,
		Title:        mod.Title + " Quiz",
		PassingScore: passingOverride,
	}
	if err := db.Create(quiz).Error; err != nil {
		t.Fatalf("seed quiz: %v", err)
	}
	for i := 0; i < questions; i++ {
		q := &model.QuizQuestion{
			QuizID: quiz.ID,
			Text:   fmt.Sprintf("Question %d", i+1),
			Order:  i + 1,
		}
		if err := db.Create(q).Error; err != nil {
			t.Fatalf("seed question: %v", err)
		}
		opts := []model.QuizOption{
			{QuestionID: q.ID, Text: "right", IsCorrect: true},
			{QuestionID: q.ID, Text: "wrong"},
		}
		if err := db.Create(&opts).Error; err != nil {
			t.Fatalf("seed options: %v", err)
		}
	}
	return quiz
}

// answersFor 前 correct 道题答对，其余答错
func answersFor(t *testing.T, env *testEnv, quizID uint, correct int) []QuizAnswerInput {
	t.Helper()
	quiz, err := env.quizRepo.FindByID(quizID)
	if err != nil {
		t.Fatalf("load quiz: %v", err)
	}
	answers := make([]QuizAnswerInput, 0, len(quiz.Questions))
	for i, q := range quiz.Questions {
		var pick uint
		for _, opt := range q.Options {
			if opt.IsCorrect == (i < correct) {
				pick = opt.ID
				break
			}
		}
		answers = append(answers, QuizAnswerInput{QuestionID: q.ID, SelectedOptionID: pick})
	}
	return answers
}

// passQuiz 全对提交，断言通过
func passQuiz(t *testing.T, env *testEnv, userID, quizID uint) *QuizSubmissionResult {
	t.Helper()
	quiz, err := env.quizRepo.FindByID(quizID)
	if err != nil {
		t.Fatalf("load quiz: %v", err)
	}
	res, err := env.progression.SubmitQuiz(userID, quizID, answersFor(t, env, quizID, len(quiz.Questions)))
	if err != nil {
		t.Fatalf("submit quiz %d: %v", quizID, err)
	}
	if !res.Passed {
		t.Fatalf("expected pass, got score %.2f", res.Score)
	}
	return res
}

// settleOneTime 建单、标记已支付并走 webhook 对账，返回 checkoutID
func settleOneTime(t *testing.T, env *testEnv, userID, courseID uint) string {
	t.Helper()
	sess, err := env.payment.CreateCheckout(userID, courseID, false)
	if err != nil {
		t.Fatalf("create checkout: %v", err)
	}
	env.gateway.markPaid(sess.ID)
	if err := env.payment.ReconcileCheckoutCompleted(sess.ID, "cus_1", ""); err != nil {
		t.Fatalf("reconcile checkout: %v", err)
	}
	return sess.ID
}
