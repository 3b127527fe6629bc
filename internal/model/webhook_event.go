package model

import "time"

// WebhookEvent 网关 webhook 事件的落库审计，(provider, event_id) 唯一索引
// 用于 at-least-once 投递的去重。
type WebhookEvent struct {
	BaseModel
	Provider  string `gorm:"size:20;not null;uniqueIndex:ux_webhook_events_provider_event,priority:1" json:"provider"`
	EventID   string `gorm:"size:191;not null;uniqueIndex:ux_webhook_events_provider_event,priority:2" json:"eventId"`
	EventType string `gorm:"size:100;not null;index" json:"eventType"`
	Payload   string `gorm:"type:text" json:"-"`

	ProcessedAt     *time.Time `json:"processedAt,omitempty"`
	ProcessingError string     `gorm:"type:text" json:"processingError,omitempty"`
}

// Processed 上一次投递已成功处理完。只有这种记录才能当重复投递确认，
// 处理失败或中断的事件必须在网关重试时重新处理。
func (e *WebhookEvent) Processed() bool {
	return e.ProcessedAt != nil && e.ProcessingError == ""
}

func (WebhookEvent) TableName() string {
	return "webhook_events"
}
