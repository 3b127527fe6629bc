package service

import (
	"academy_backend/internal/config"
	"academy_backend/internal/model"
	"academy_backend/internal/repository"
	"academy_backend/pkg/logger"
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AffiliateService 推广归因。转化只在订单首次入账的事务里产生，
// 幂等性完全依赖订单自身的"已入账"判断，不另设去重键。
type AffiliateService struct {
	AffiliateRepo *repository.AffiliateRepository
	UserRepo      *repository.UserRepository
	Cfg           *config.AffiliateConfig
	Redis         *redis.Client
}

func NewAffiliateService(
	affiliateRepo *repository.AffiliateRepository,
	userRepo *repository.UserRepository,
	cfg *config.AffiliateConfig,
	rdb *redis.Client,
) *AffiliateService {
	return &AffiliateService{
		AffiliateRepo: affiliateRepo,
		UserRepo:      userRepo,
		Cfg:           cfg,
		Redis:         rdb,
	}
}

// Attribute 在入账事务里执行。推广码缺失、推广人未审核通过、
// 自推自购，都静默跳过，不影响入账本身。
func (s *AffiliateService) Attribute(tx *gorm.DB, payment *model.Payment) error {
	var user model.User
	if err := tx.First(&user, payment.UserID).Error; err != nil {
		return err
	}
	if user.ReferralCode == "" {
		return nil
	}

	affiliate, err := s.AffiliateRepo.FindByCode(tx, user.ReferralCode)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if affiliate.Status != model.AffiliateApproved {
		return nil
	}
	if affiliate.UserID == payment.UserID {
		// 自己推荐自己不产生佣金
		return nil
	}

	commission := int64(math.Round(float64(payment.AmountTotal) * affiliate.CommissionRate / 100))
	conv := &model.AffiliateConversion{
		AffiliateID:     affiliate.ID,
		PaymentID:       payment.ID,
		UserID:          payment.UserID,
		CourseID:        payment.CourseID,
		AmountTotal:     payment.AmountTotal,
		CommissionCents: commission,
	}
	if err := s.AffiliateRepo.CreateConversion(tx, conv); err != nil {
		return err
	}

	logger.Log.Info("affiliate conversion recorded",
		zap.Uint("affiliate_id", affiliate.ID),
		zap.Uint("payment_id", payment.ID),
		zap.Int64("commission_cents", commission),
	)
	return nil
}

// RecordClick 推广链接点击计数（尽力而为，Redis 不可用不影响跳转）
func (s *AffiliateService) RecordClick(ctx context.Context, code string) {
	if s.Redis == nil {
		return
	}
	key := fmt.Sprintf("affiliate:clicks:%s", code)
	if err := s.Redis.Incr(ctx, key).Err(); err != nil {
		logger.Log.Warn("failed to record affiliate click",
			zap.String("code", code), zap.Error(err))
	}
}

// ClickCount 推广码累计点击数
func (s *AffiliateService) ClickCount(ctx context.Context, code string) int64 {
	if s.Redis == nil {
		return 0
	}
	n, err := s.Redis.Get(ctx, fmt.Sprintf("affiliate:clicks:%s", code)).Int64()
	if err != nil {
		return 0
	}
	return n
}

// Apply 申请成为推广人，生成唯一推广码，等待管理员审核
func (s *AffiliateService) Apply(userID uint) (*model.Affiliate, error) {
	if existing, err := s.AffiliateRepo.FindByUserID(userID); err == nil {
		return existing, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	affiliate := &model.Affiliate{
		UserID:         userID,
		Code:           strings.ToLower(model.GenerateUUID()[:8]),
		CommissionRate: s.Cfg.DefaultCommissionRate,
		Status:         model.AffiliatePending,
	}
	if err := s.AffiliateRepo.Create(affiliate); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return s.AffiliateRepo.FindByUserID(userID)
		}
		return nil, err
	}
	return affiliate, nil
}

func (s *AffiliateService) SetStatus(affiliateID uint, status model.AffiliateStatus) error {
	return s.AffiliateRepo.UpdateStatus(affiliateID, status)
}

func (s *AffiliateService) List(page, limit int) ([]model.Affiliate, int64, error) {
	return s.AffiliateRepo.List(page, limit)
}

func (s *AffiliateService) Conversions(affiliateID uint) ([]model.AffiliateConversion, error) {
	return s.AffiliateRepo.ListConversions(affiliateID)
}

func (s *AffiliateService) FindByUserID(userID uint) (*model.Affiliate, error) {
	return s.AffiliateRepo.FindByUserID(userID)
}
