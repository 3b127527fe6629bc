package repository

import (
	"academy_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AffiliateRepository struct {
	DB *gorm.DB
}

func NewAffiliateRepository(db *gorm.DB) *AffiliateRepository {
	return &AffiliateRepository{DB: db}
}

func (r *AffiliateRepository) Create(affiliate *model.Affiliate) error {
	return r.DB.Create(affiliate).Error
}

func (r *AffiliateRepository) FindByCode(tx *gorm.DB, code string) (*model.Affiliate, error) {
	var affiliate model.Affiliate
	err := tx.Where("code = ?", code).First(&affiliate).Error
	return &affiliate, err
}

func (r *AffiliateRepository) FindByUserID(userID uint) (*model.Affiliate, error) {
	var affiliate model.Affiliate
	err := r.DB.Where("user_id = ?", userID).First(&affiliate).Error
	return &affiliate, err
}

func (r *AffiliateRepository) UpdateStatus(affiliateID uint, status model.AffiliateStatus) error {
	return r.DB.Model(&model.Affiliate{}).
		Where("id = ?", affiliateID).
		Update("status", status).Error
}

func (r *AffiliateRepository) List(page, limit int) ([]model.Affiliate, int64, error) {
	var affiliates []model.Affiliate
	var total int64

	if err := r.DB.Model(&model.Affiliate{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := r.DB.Order("id ASC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&affiliates).Error
	return affiliates, total, err
}

// CreateConversion payment_id 唯一索引保证一笔订单至多一条转化
func (r *AffiliateRepository) CreateConversion(tx *gorm.DB, conv *model.AffiliateConversion) error {
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(conv).Error
}

func (r *AffiliateRepository) ListConversions(affiliateID uint) ([]model.AffiliateConversion, error) {
	var convs []model.AffiliateConversion
	err := r.DB.Where("affiliate_id = ?", affiliateID).
		Order("id DESC").
		Find(&convs).Error
	return convs, err
}
