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

// 首期发票的 billing_reason；checkout-completed 已经把首期入账，
// 对应的 invoice-paid 事件必须跳过，否则首期会被记两次。
const billingReasonSubscriptionCreate = "subscription_create"

// PaymentService 对账器：webhook 和客户端核验两条路径都收敛到 settle，
// 已入账的订单重复触发一律空转。
type PaymentService struct {
	PaymentRepo    *repository.PaymentRepository
	CourseRepo     *repository.CourseRepository
	UserRepo       *repository.UserRepository
	EnrollmentRepo *repository.EnrollmentRepository
	Progression    *ProgressionService
	Affiliate      *AffiliateService
	Gateway        PaymentGateway
	DB             *gorm.DB
}

func NewPaymentService(
	paymentRepo *repository.PaymentRepository,
	courseRepo *repository.CourseRepository,
	userRepo *repository.UserRepository,
	enrollmentRepo *repository.EnrollmentRepository,
	progression *ProgressionService,
	affiliate *AffiliateService,
	gateway PaymentGateway,
	db *gorm.DB,
) *PaymentService {
	return &PaymentService{
		PaymentRepo:    paymentRepo,
		CourseRepo:     courseRepo,
		UserRepo:       userRepo,
		EnrollmentRepo: enrollmentRepo,
		Progression:    progression,
		Affiliate:      affiliate,
		Gateway:        gateway,
		DB:             db,
	}
}

// CreateCheckout 创建网关会话和 PENDING 订单。同一 (学员, 课程) 只保留
// 一条未取消的订单：已入账的拒绝重买，遗留的 PENDING 会话被作废替换。
func (s *PaymentService) CreateCheckout(userID, courseID uint, installment bool) (*CheckoutSession, error) {
	course, err := s.CourseRepo.FindByID(courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrCourseNotFound
		}
		return nil, err
	}
	if !course.Published {
		return nil, util.ErrCourseNotFound
	}
	if installment && course.Installments < 2 {
		return nil, errors.New("course does not support installment payment")
	}

	user, err := s.UserRepo.FindByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// 令牌还有效但账号已不存在
			return nil, util.ErrUserNotFound
		}
		return nil, err
	}

	existing, err := s.PaymentRepo.FindLiveByUserAndCourse(userID, courseID)
	if err == nil {
		if existing.Settled() {
			return nil, util.ErrAlreadyEnrolled
		}
		// 旧的未完成会话作废，重新发起
		existing.Status = model.PaymentCancelled
		if err := s.PaymentRepo.Save(s.DB, existing); err != nil {
			return nil, err
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	sess, err := s.Gateway.CreateCheckoutSession(user, course, installment)
	if err != nil {
		return nil, err
	}

	payment := &model.Payment{
		UserID:            userID,
		CourseID:          courseID,
		CheckoutID:        sess.ID,
		Type:              model.PaymentOneTime,
		Status:            model.PaymentPending,
		AmountTotal:       course.PriceCents,
		InstallmentsTotal: 1,
	}
	if installment {
		payment.Type = model.PaymentInstallment
		payment.InstallmentsTotal = course.Installments
	}

	if err := s.PaymentRepo.Create(payment); err != nil {
		return nil, err
	}

	logger.Log.Info("checkout session created",
		zap.Uint("user_id", userID),
		zap.Uint("course_id", courseID),
		zap.String("checkout_id", sess.ID),
		zap.Bool("installment", installment),
	)
	return sess, nil
}

// VerifyCheckout 客户端回跳先于 webhook 到达时的核验路径。
// 订单必须属于调用者；未入账时向网关复核会话后入账，结果与 webhook 路径一致。
func (s *PaymentService) VerifyCheckout(userID uint, checkoutID string) (*model.Payment, error) {
	payment, err := s.PaymentRepo.FindByCheckoutID(s.DB, checkoutID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrPaymentNotFound
		}
		return nil, err
	}
	if payment.UserID != userID {
		return nil, util.ErrPermissionDenied
	}
	if payment.Settled() {
		return payment, nil
	}

	sess, err := s.Gateway.RetrieveCheckoutSession(checkoutID)
	if err != nil {
		return nil, err
	}
	if sess.PaymentStatus != "paid" {
		return nil, util.ErrCheckoutNotPaid
	}

	err = s.settle(checkoutID, sess.CustomerID, sess.SubscriptionID)
	if err != nil && !errors.Is(err, util.ErrAlreadySettled) {
		return nil, err
	}
	return s.PaymentRepo.FindByCheckoutID(s.DB, checkoutID)
}

// ReconcileCheckoutCompleted webhook 路径。查不到订单按空转处理——
// 事件可能来自其他部署或测试模式，不值得让网关重试。
func (s *PaymentService) ReconcileCheckoutCompleted(checkoutID, customerID, subscriptionID string) error {
	_, err := s.PaymentRepo.FindByCheckoutID(s.DB, checkoutID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Log.Warn("checkout completed for unknown payment",
				zap.String("checkout_id", checkoutID))
			return nil
		}
		return err
	}
	if err = s.settle(checkoutID, customerID, subscriptionID); errors.Is(err, util.ErrAlreadySettled) {
		return nil
	}
	return err
}

// settle 入账：订单状态、报名、进度初始化和推广归因在同一个事务里落库。
// 事务内重查订单，已入账返回 ErrAlreadySettled，重复事件不会产生第二次写入。
func (s *PaymentService) settle(checkoutID, customerID, subscriptionID string) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		payment, err := s.PaymentRepo.FindByCheckoutID(tx, checkoutID)
		if err != nil {
			return err
		}
		if payment.Settled() {
			return util.ErrAlreadySettled
		}

		payment.CustomerID = customerID
		payment.SubscriptionID = subscriptionID

		if payment.Type == model.PaymentInstallment {
			payment.Status = model.PaymentActive
			payment.InstallmentsPaid = 1
			payment.AmountPaid = installmentUnit(payment)
		} else {
			payment.Status = model.PaymentCompleted
			payment.InstallmentsPaid = 1
			payment.AmountPaid = payment.AmountTotal
		}

		if err := s.PaymentRepo.Save(tx, payment); err != nil {
			return err
		}

		enrollment := &model.Enrollment{
			UserID:    payment.UserID,
			CourseID:  payment.CourseID,
			PaymentID: payment.ID,
		}
		if err := s.EnrollmentRepo.CreateIfAbsent(tx, enrollment); err != nil {
			return err
		}

		if err := s.Progression.InitializeModuleProgress(tx, payment.UserID, payment.CourseID); err != nil {
			return err
		}

		if err := s.Affiliate.Attribute(tx, payment); err != nil {
			return err
		}

		logger.Log.Info("payment settled",
			zap.String("checkout_id", checkoutID),
			zap.Uint("user_id", payment.UserID),
			zap.Uint("course_id", payment.CourseID),
			zap.String("status", string(payment.Status)),
		)
		return nil
	})
}

// ReconcileInstallmentCharge 周期扣款到账。首期发票跳过（checkout-completed
// 已入账）。扣满后标记 COMPLETED 并尽力取消网关侧订阅——取消失败只记日志，
// 本地状态不回滚。
func (s *PaymentService) ReconcileInstallmentCharge(subscriptionID, billingReason string) error {
	if billingReason == billingReasonSubscriptionCreate {
		return nil
	}

	payment, err := s.PaymentRepo.FindBySubscriptionID(s.DB, subscriptionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Log.Warn("invoice paid for unknown subscription",
				zap.String("subscription_id", subscriptionID))
			return nil
		}
		return err
	}
	if payment.Type != model.PaymentInstallment || payment.Terminal() {
		return nil
	}

	payment.InstallmentsPaid++
	payment.AmountPaid += installmentUnit(payment)
	if payment.AmountPaid > payment.AmountTotal {
		payment.AmountPaid = payment.AmountTotal
	}
	if payment.InstallmentsPaid >= payment.InstallmentsTotal {
		payment.InstallmentsPaid = payment.InstallmentsTotal
		payment.AmountPaid = payment.AmountTotal
		payment.Status = model.PaymentCompleted
	} else {
		payment.Status = model.PaymentActive
	}

	if err := s.PaymentRepo.Save(s.DB, payment); err != nil {
		return err
	}

	logger.Log.Info("installment charge reconciled",
		zap.String("subscription_id", subscriptionID),
		zap.Int("installments_paid", payment.InstallmentsPaid),
		zap.Int64("amount_paid", payment.AmountPaid),
	)

	if payment.Status == model.PaymentCompleted {
		// 订阅已无用处，后台尽力取消，最终一致
		go s.cancelSubscription(subscriptionID)
	}
	return nil
}

// ReconcileSubscriptionCancelled 未扣满的订阅被取消则订单作废；
// 扣满后的取消是完成流程的正常收尾，不动订单。
func (s *PaymentService) ReconcileSubscriptionCancelled(subscriptionID string) error {
	payment, err := s.PaymentRepo.FindBySubscriptionID(s.DB, subscriptionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if payment.FullyPaid() || payment.Status == model.PaymentCancelled {
		return nil
	}

	payment.Status = model.PaymentCancelled
	if err := s.PaymentRepo.Save(s.DB, payment); err != nil {
		return err
	}

	logger.Log.Info("payment cancelled with subscription",
		zap.String("subscription_id", subscriptionID),
		zap.Uint("payment_id", payment.ID),
	)
	return nil
}

// ReconcilePaymentFailed 周期扣款失败 → PAST_DUE，等待网关重试或人工跟进
func (s *PaymentService) ReconcilePaymentFailed(subscriptionID string) error {
	payment, err := s.PaymentRepo.FindBySubscriptionID(s.DB, subscriptionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if payment.FullyPaid() || payment.Terminal() {
		return nil
	}

	payment.Status = model.PaymentPastDue
	if err := s.PaymentRepo.Save(s.DB, payment); err != nil {
		return err
	}

	logger.Log.Warn("recurring charge failed, payment past due",
		zap.String("subscription_id", subscriptionID),
		zap.Uint("payment_id", payment.ID),
	)
	return nil
}

func (s *PaymentService) ListByUser(userID uint) ([]model.Payment, error) {
	return s.PaymentRepo.ListByUser(userID)
}

func (s *PaymentService) cancelSubscription(subscriptionID string) {
	if err := s.Gateway.CancelSubscription(subscriptionID); err != nil {
		logger.Log.Error("best-effort subscription cancel failed",
			zap.String("subscription_id", subscriptionID),
			zap.Error(err),
		)
	}
}

// installmentUnit 单期金额，向上取整；最后一期由 AmountTotal 封顶吸收差额
func installmentUnit(p *model.Payment) int64 {
	n := int64(p.InstallmentsTotal)
	if n <= 0 {
		return p.AmountTotal
	}
	return (p.AmountTotal + n - 1) / n
}
