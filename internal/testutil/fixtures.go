package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/scribe_server/internal/model"
)

var profileSeq int64

// TestProfile 创建测试用户资料，默认本月已重置、免费额度已用完
func TestProfile(t *testing.T, db *gorm.DB, opts ...func(*model.Profile)) *model.Profile {
	t.Helper()

	n := atomic.AddInt64(&profileSeq, 1)
	resetAt := time.Now().UTC()
	profile := &model.Profile{
		TwitterID:        fmt.Sprintf("tw_%d_%d", time.Now().UnixNano(), n),
		Username:         fmt.Sprintf("testuser_%d", n),
		Plan:             model.PlanFree,
		SubscriptionPlan: model.PlanFree,
		FreePostsUsed:    0,
		MonthlyPostsUsed: 0,
		MonthlyPostLimit: 0,
		LastPostReset:    &resetAt,
	}

	for _, opt := range opts {
		opt(profile)
	}

	if err := db.Create(profile).Error; err != nil {
		t.Fatalf("Failed to create test profile: %v", err)
	}

	return profile
}

// WithFreePostsUsed 设置已使用的免费额度
func WithFreePostsUsed(used int) func(*model.Profile) {
	return func(p *model.Profile) {
		p.FreePostsUsed = used
	}
}

// WithMonthly 设置月度用量和上限
func WithMonthly(used, limit int) func(*model.Profile) {
	return func(p *model.Profile) {
		p.MonthlyPostsUsed = used
		p.MonthlyPostLimit = limit
	}
}

// WithLastPostReset 设置上次月度重置时间，nil 表示从未重置
func WithLastPostReset(at *time.Time) func(*model.Profile) {
	return func(p *model.Profile) {
		if at == nil {
			p.LastPostReset = nil
			return
		}
		utc := at.UTC()
		p.LastPostReset = &utc
	}
}

// WithSubscription 设置订阅镜像字段
func WithSubscription(subscriptionID, plan string, periodEnd time.Time) func(*model.Profile) {
	return func(p *model.Profile) {
		p.SubscriptionID = &subscriptionID
		p.SubscriptionPlan = plan
		end := periodEnd.UTC()
		p.SubscriptionCurrentPeriodEnd = &end
	}
}

// WithPaymentCustomer 设置支付客户 id
func WithPaymentCustomer(customerID string) func(*model.Profile) {
	return func(p *model.Profile) {
		p.PaymentCustomerID = &customerID
	}
}

// WithPlan 设置套餐
func WithPlan(plan string, monthlyLimit int) func(*model.Profile) {
	return func(p *model.Profile) {
		p.Plan = plan
		p.MonthlyPostLimit = monthlyLimit
	}
}
