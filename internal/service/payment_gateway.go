package service

import (
	"academy_backend/internal/config"
	"academy_backend/internal/model"
	"context"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/checkout/session"
	"github.com/stripe/stripe-go/v80/subscription"
)

// CheckoutSession 网关会话的本地视图，屏蔽 Stripe 的类型细节方便测试
type CheckoutSession struct {
	ID             string
	URL            string
	CustomerID     string
	SubscriptionID string
	// paid / unpaid / no_payment_required
	PaymentStatus string
}

// PaymentGateway 出站支付网关调用，服务层只依赖该接口
type PaymentGateway interface {
	CreateCheckoutSession(user *model.User, course *model.Course, installment bool) (*CheckoutSession, error)
	RetrieveCheckoutSession(checkoutID string) (*CheckoutSession, error)
	CancelSubscription(subscriptionID string) error
}

type StripeGateway struct {
	Cfg *config.PaymentConfig
}

func NewStripeGateway(cfg *config.PaymentConfig) *StripeGateway {
	stripe.Key = cfg.SecretKey
	return &StripeGateway{Cfg: cfg}
}

func (g *StripeGateway) timeoutCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), time.Duration(g.Cfg.TimeoutSeconds)*time.Second)
}

func (g *StripeGateway) CreateCheckoutSession(user *model.User, course *model.Course, installment bool) (*CheckoutSession, error) {
	ctx, cancel := g.timeoutCtx()
	defer cancel()

	priceData := &stripe.CheckoutSessionLineItemPriceDataParams{
		Currency: stripe.String(course.Currency),
		ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name:        stripe.String(course.Title),
			Description: stripe.String(course.Description),
		},
	}

	mode := stripe.CheckoutSessionModePayment
	if installment {
		// 分期走按月订阅，每期金额向上取整，最后一期在对账时吸收差额
		mode = stripe.CheckoutSessionModeSubscription
		per := (course.PriceCents + int64(course.Installments) - 1) / int64(course.Installments)
		priceData.UnitAmount = stripe.Int64(per)
		priceData.Recurring = &stripe.CheckoutSessionLineItemPriceDataRecurringParams{
			Interval: stripe.String("month"),
		}
	} else {
		priceData.UnitAmount = stripe.Int64(course.PriceCents)
	}

	params := &stripe.CheckoutSessionParams{
		Params:     stripe.Params{Context: ctx},
		SuccessURL: stripe.String(g.Cfg.SuccessURL),
		CancelURL:  stripe.String(g.Cfg.CancelURL),
		Mode:       stripe.String(string(mode)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Quantity:  stripe.Int64(1),
			PriceData: priceData,
		}},
		CustomerEmail: stripe.String(user.Email),
		Metadata: map[string]string{
			"user_id":   fmt.Sprintf("%d", user.ID),
			"course_id": fmt.Sprintf("%d", course.ID),
		},
	}

	s, err := session.New(params)
	if err != nil {
		return nil, fmt.Errorf("creating stripe session: %w", err)
	}

	return fromStripeSession(s), nil
}

func (g *StripeGateway) RetrieveCheckoutSession(checkoutID string) (*CheckoutSession, error) {
	ctx, cancel := g.timeoutCtx()
	defer cancel()

	params := &stripe.CheckoutSessionParams{Params: stripe.Params{Context: ctx}}
	s, err := session.Get(checkoutID, params)
	if err != nil {
		return nil, fmt.Errorf("retrieving stripe session[%s]: %w", checkoutID, err)
	}

	return fromStripeSession(s), nil
}

func (g *StripeGateway) CancelSubscription(subscriptionID string) error {
	ctx, cancel := g.timeoutCtx()
	defer cancel()

	params := &stripe.SubscriptionCancelParams{Params: stripe.Params{Context: ctx}}
	if _, err := subscription.Cancel(subscriptionID, params); err != nil {
		return fmt.Errorf("cancelling stripe subscription[%s]: %w", subscriptionID, err)
	}
	return nil
}

func fromStripeSession(s *stripe.CheckoutSession) *CheckoutSession {
	cs := &CheckoutSession{
		ID:            s.ID,
		URL:           s.URL,
		PaymentStatus: string(s.PaymentStatus),
	}
	if s.Customer != nil {
		cs.CustomerID = s.Customer.ID
	}
	if s.Subscription != nil {
		cs.SubscriptionID = s.Subscription.ID
	}
	return cs
}
