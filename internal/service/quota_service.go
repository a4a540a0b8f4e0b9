package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/scribe_server/config"
	"github.com/qs3c/scribe_server/internal/model"
	"github.com/qs3c/scribe_server/internal/model/dto"
	"github.com/qs3c/scribe_server/internal/pkg/metrics"
	"github.com/qs3c/scribe_server/internal/repository"
)

// QuotaDecision 一次发帖请求的额度判定结果
type QuotaDecision struct {
	Allowed           bool
	NeedsMonthlyReset bool
	IncrementFree     bool
	IncrementMonthly  bool
}

// Usage 转换为需要提交的计数变更
func (d QuotaDecision) Usage(now time.Time) repository.PostUsage {
	return repository.PostUsage{
		IncrementFree:    d.IncrementFree,
		IncrementMonthly: d.IncrementMonthly,
		ResetMonthly:     d.NeedsMonthlyReset,
		Now:              now,
	}
}

// EvaluateQuota 判定是否允许发帖。
// 免费额度优先于月度额度消耗；两种额度都会计入本月用量。
func EvaluateQuota(p *model.Profile, now time.Time, freeAllotment int) QuotaDecision {
	decision := QuotaDecision{NeedsMonthlyReset: NeedsMonthlyReset(p.LastPostReset, now)}

	monthlyUsed := p.MonthlyPostsUsed
	if decision.NeedsMonthlyReset {
		monthlyUsed = 0
	}

	switch {
	case p.FreePostsUsed < freeAllotment:
		decision.Allowed = true
		decision.IncrementFree = true
		decision.IncrementMonthly = true
	case monthlyUsed < p.MonthlyPostLimit:
		decision.Allowed = true
		decision.IncrementMonthly = true
	}

	return decision
}

// NeedsMonthlyReset 上次重置早于当前 UTC 自然月（按 (年, 月) 整体比较）
func NeedsMonthlyReset(lastReset *time.Time, now time.Time) bool {
	if lastReset == nil {
		return true
	}
	last := lastReset.UTC()
	now = now.UTC()
	return monthIndex(last) < monthIndex(now)
}

func monthIndex(t time.Time) int {
	return t.Year()*12 + int(t.Month()) - 1
}

type QuotaService struct {
	profileRepo *repository.ProfileRepository
	cfg         *config.Config
	metrics     *metrics.Metrics
	now         func() time.Time
}

func NewQuotaService(profileRepo *repository.ProfileRepository, cfg *config.Config, m *metrics.Metrics) *QuotaService {
	return &QuotaService{
		profileRepo: profileRepo,
		cfg:         cfg,
		metrics:     m,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Evaluate 使用配置中的免费额度判定
func (s *QuotaService) Evaluate(p *model.Profile, now time.Time) QuotaDecision {
	return EvaluateQuota(p, now, s.cfg.Quota.FreePostAllotment)
}

// GetQuotaInfo 获取用户额度，跨月未重置时本月用量按 0 展示
func (s *QuotaService) GetQuotaInfo(ctx context.Context, userID int64) (*dto.QuotaInfo, error) {
	profile, err := s.profileRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}

	return s.BuildQuotaInfo(profile, s.now()), nil
}

// BuildQuotaInfo 根据资料快照计算额度展示信息
func (s *QuotaService) BuildQuotaInfo(profile *model.Profile, now time.Time) *dto.QuotaInfo {
	allotment := s.cfg.Quota.FreePostAllotment

	monthlyUsed := profile.MonthlyPostsUsed
	if NeedsMonthlyReset(profile.LastPostReset, now) {
		monthlyUsed = 0
	}

	info := &dto.QuotaInfo{
		Plan:                  profile.Plan,
		FreePostsUsed:         profile.FreePostsUsed,
		FreePostAllotment:     allotment,
		FreePostsRemaining:    nonNegative(allotment - profile.FreePostsUsed),
		MonthlyPostsUsed:      monthlyUsed,
		MonthlyPostLimit:      profile.MonthlyPostLimit,
		MonthlyPostsRemaining: nonNegative(profile.MonthlyPostLimit - monthlyUsed),
		ResetAt:               repository.MonthStart(now).AddDate(0, 1, 0).Format(time.RFC3339),
		Subscription: &dto.SubscriptionInfo{
			Plan:              profile.SubscriptionPlan,
			CancelAtPeriodEnd: profile.SubscriptionCancelAtPeriodEnd,
		},
	}
	if profile.SubscriptionCurrentPeriodEnd != nil {
		info.Subscription.CurrentPeriodEnd = profile.SubscriptionCurrentPeriodEnd.UTC().Format(time.RFC3339)
	}

	return info
}

// CountStaleCounters 统计本月尚未重置的用户数
func (s *QuotaService) CountStaleCounters(ctx context.Context, now time.Time) (int64, error) {
	return s.profileRepo.CountStaleMonthlyCounters(ctx, now)
}

// ResetStaleCounters 批量重置跨月的月度计数；发帖时的惰性重置仍然生效
func (s *QuotaService) ResetStaleCounters(ctx context.Context, now time.Time) (int64, error) {
	rows, err := s.profileRepo.ResetStaleMonthlyCounters(ctx, now.UTC())
	if err != nil {
		return 0, err
	}
	if s.metrics != nil {
		s.metrics.MonthlyResetsTotal.Add(float64(rows))
	}
	return rows, nil
}

func nonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
