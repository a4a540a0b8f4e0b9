package model

import (
	"time"
)

const (
	BillingEventApplied = "applied"
	BillingEventIgnored = "ignored"
)

// BillingEvent 已处理的支付事件，用于审计和重复投递去重
type BillingEvent struct {
	ID             string    `gorm:"primaryKey;size:100" json:"id"`
	Type           string    `gorm:"size:100;not null;index" json:"type"`
	ProfileID      *int64    `gorm:"index" json:"profile_id,omitempty"`
	SubscriptionID string    `gorm:"size:100;index" json:"subscription_id,omitempty"`
	Status         string    `gorm:"size:20;not null" json:"status"`
	ProcessedAt    time.Time `gorm:"not null" json:"processed_at"`
}

func (BillingEvent) TableName() string {
	return "billing_events"
}
