package repository

import (
	"academy_backend/internal/model"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PaymentRepository struct {
	DB *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{DB: db}
}

func (r *PaymentRepository) Create(payment *model.Payment) error {
	return r.DB.Create(payment).Error
}

func (r *PaymentRepository) FindByCheckoutID(tx *gorm.DB, checkoutID string) (*model.Payment, error) {
	var payment model.Payment
	err := tx.Where("checkout_id = ?", checkoutID).First(&payment).Error
	return &payment, err
}

func (r *PaymentRepository) FindBySubscriptionID(tx *gorm.DB, subscriptionID string) (*model.Payment, error) {
	var payment model.Payment
	err := tx.Where("subscription_id = ?", subscriptionID).First(&payment).Error
	return &payment, err
}

// FindLiveByUserAndCourse 当前有效（未取消）的购买记录
func (r *PaymentRepository) FindLiveByUserAndCourse(userID, courseID uint) (*model.Payment, error) {
	var payment model.Payment
	err := r.DB.Where("user_id = ? AND course_id = ? AND status <> ?",
		userID, courseID, model.PaymentCancelled).
		First(&payment).Error
	return &payment, err
}

func (r *PaymentRepository) Save(tx *gorm.DB, payment *model.Payment) error {
	return tx.Save(payment).Error
}

func (r *PaymentRepository) ListByUser(userID uint) ([]model.Payment, error) {
	var payments []model.Payment
	err := r.DB.Where("user_id = ?", userID).Order("id DESC").Find(&payments).Error
	return payments, err
}

// RecordEvent 落库 webhook 事件。重复投递（唯一索引冲突）返回已有记录和
// created=false，由调用方根据处理结果决定是确认还是重新处理。
func (r *PaymentRepository) RecordEvent(event *model.WebhookEvent) (*model.WebhookEvent, bool, error) {
	res := r.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(event)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected > 0 {
		return event, true, nil
	}

	var existing model.WebhookEvent
	err := r.DB.Where("provider = ? AND event_id = ?", event.Provider, event.EventID).
		First(&existing).Error
	if err != nil {
		return nil, false, err
	}
	return &existing, false, nil
}

// MarkEventProcessed 处理成功会清掉上一轮的错误，重试成功后记录回到干净状态
func (r *PaymentRepository) MarkEventProcessed(eventID string, processErr error) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": "",
	}
	if processErr != nil {
		updates["processing_error"] = processErr.Error()
	}
	return r.DB.Model(&model.WebhookEvent{}).
		Where("event_id = ?", eventID).
		Updates(updates).Error
}
