package model

import (
	"time"
)

const (
	PlanFree = "free"
	PlanPaid = "paid"
)

// Profile 每个用户一条记录：套餐、发帖计数和订阅镜像字段
type Profile struct {
	ID          int64  `gorm:"primaryKey" json:"id"`
	TwitterID   string `gorm:"column:twitter_id;size:50;uniqueIndex;not null" json:"-"`
	Username    string `gorm:"size:50;not null" json:"username"`
	DisplayName string `gorm:"size:100" json:"display_name"`
	AvatarURL   string `gorm:"size:500" json:"avatar_url"`

	Plan             string     `gorm:"size:20;default:free;not null" json:"plan"`
	FreePostsUsed    int        `gorm:"default:0;not null" json:"free_posts_used"`
	MonthlyPostsUsed int        `gorm:"default:0;not null" json:"monthly_posts_used"`
	MonthlyPostLimit int        `gorm:"default:0;not null" json:"monthly_post_limit"`
	LastPostReset    *time.Time `json:"last_post_reset,omitempty"`

	// 以下字段仅由订阅事件写入
	SubscriptionID                *string    `gorm:"column:stripe_subscription_id;size:100;index" json:"-"`
	SubscriptionPlan              string     `gorm:"column:stripe_subscription_plan;size:100;default:free" json:"subscription_plan"`
	SubscriptionCurrentPeriodEnd  *time.Time `gorm:"column:stripe_subscription_current_period_end" json:"subscription_current_period_end,omitempty"`
	SubscriptionCancelAtPeriodEnd bool       `gorm:"column:stripe_subscription_cancel_at_period_end;default:false" json:"subscription_cancel_at_period_end"`
	SubscriptionUpdatedAt         *time.Time `gorm:"column:stripe_subscription_updated_at" json:"-"`

	PaymentCustomerID *string `gorm:"column:stripe_customer_id;size:100;uniqueIndex" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Profile) TableName() string {
	return "profiles"
}
