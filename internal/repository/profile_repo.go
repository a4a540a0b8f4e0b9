package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/scribe_server/internal/model"
)

// PostUsage 一次成功发帖后需要提交的计数变更
type PostUsage struct {
	IncrementFree    bool
	IncrementMonthly bool
	ResetMonthly     bool
	Now              time.Time
}

type ProfileRepository struct {
	db *gorm.DB
}

func NewProfileRepository(db *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) Create(ctx context.Context, profile *model.Profile) error {
	return r.db.WithContext(ctx).Create(profile).Error
}

func (r *ProfileRepository) GetByID(ctx context.Context, id int64) (*model.Profile, error) {
	var profile model.Profile
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&profile).Error
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *ProfileRepository) GetByTwitterID(ctx context.Context, twitterID string) (*model.Profile, error) {
	var profile model.Profile
	err := r.db.WithContext(ctx).Where("twitter_id = ?", twitterID).First(&profile).Error
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *ProfileRepository) GetBySubscriptionID(ctx context.Context, subscriptionID string) (*model.Profile, error) {
	var profile model.Profile
	err := r.db.WithContext(ctx).Where("stripe_subscription_id = ?", subscriptionID).First(&profile).Error
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// UpdateFields 按 id 部分更新，记录不存在时返回 gorm.ErrRecordNotFound
func (r *ProfileRepository) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&model.Profile{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdateBySubscriptionID 按订阅 id 部分更新，返回受影响行数
func (r *ProfileRepository) UpdateBySubscriptionID(ctx context.Context, subscriptionID string, fields map[string]interface{}) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.Profile{}).
		Where("stripe_subscription_id = ?", subscriptionID).
		Updates(fields)
	return res.RowsAffected, res.Error
}

// AdvanceSubscriptionPeriodEnd 只向后推进账期结束时间，乱序到达的旧事件不会覆盖新值。
// extra 中的字段与账期在同一条语句里写入，同样受该条件约束。
func (r *ProfileRepository) AdvanceSubscriptionPeriodEnd(ctx context.Context, subscriptionID string, periodEnd time.Time, extra map[string]interface{}) (int64, error) {
	fields := make(map[string]interface{}, len(extra)+1)
	for k, v := range extra {
		fields[k] = v
	}
	fields["stripe_subscription_current_period_end"] = periodEnd

	res := r.db.WithContext(ctx).Model(&model.Profile{}).
		Where("stripe_subscription_id = ?", subscriptionID).
		Where("stripe_subscription_current_period_end IS NULL OR stripe_subscription_current_period_end <= ?", periodEnd).
		Updates(fields)
	return res.RowsAffected, res.Error
}

// SetPaymentCustomerID 仅在尚未绑定时写入支付客户 id
func (r *ProfileRepository) SetPaymentCustomerID(ctx context.Context, id int64, customerID string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Profile{}).
		Where("id = ?", id).
		Where("stripe_customer_id IS NULL OR stripe_customer_id = ''").
		Update("stripe_customer_id", customerID)
	return res.RowsAffected > 0, res.Error
}

// ApplyPostUsage 在一个事务里提交发帖计数。
// 计数使用 col = col + 1 表达式；月度重置只在 last_post_reset 仍早于本月时生效，
// 否则说明并发请求已经重置过，退化为普通自增。
func (r *ProfileRepository) ApplyPostUsage(ctx context.Context, id int64, usage PostUsage) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		fields := map[string]interface{}{}
		if usage.IncrementFree {
			fields["free_posts_used"] = gorm.Expr("free_posts_used + 1")
		}

		if usage.ResetMonthly {
			reset := map[string]interface{}{
				"monthly_posts_used": 0,
				"last_post_reset":    usage.Now,
			}
			if usage.IncrementMonthly {
				reset["monthly_posts_used"] = 1
			}
			for k, v := range fields {
				reset[k] = v
			}

			res := tx.Model(&model.Profile{}).
				Where("id = ?", id).
				Where("last_post_reset IS NULL OR last_post_reset < ?", MonthStart(usage.Now)).
				Updates(reset)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected > 0 {
				return nil
			}
		}

		if usage.IncrementMonthly {
			fields["monthly_posts_used"] = gorm.Expr("monthly_posts_used + 1")
		}
		if len(fields) == 0 {
			return nil
		}

		res := tx.Model(&model.Profile{}).Where("id = ?", id).Updates(fields)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// CountStaleMonthlyCounters 统计本月尚未重置的记录数
func (r *ProfileRepository) CountStaleMonthlyCounters(ctx context.Context, now time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Profile{}).
		Where("last_post_reset IS NULL OR last_post_reset < ?", MonthStart(now)).
		Count(&count).Error
	return count, err
}

// ResetStaleMonthlyCounters 批量重置本月尚未重置的月度计数
func (r *ProfileRepository) ResetStaleMonthlyCounters(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.Profile{}).
		Where("last_post_reset IS NULL OR last_post_reset < ?", MonthStart(now)).
		Updates(map[string]interface{}{
			"monthly_posts_used": 0,
			"last_post_reset":    now,
		})
	return res.RowsAffected, res.Error
}

// MonthStart 返回 t 所在 UTC 月份的第一刻
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
