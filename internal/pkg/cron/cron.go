package cron

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"github.com/qs3c/scribe_server/internal/service"
)

const sweepTimeout = 5 * time.Minute

type Service struct {
	quotaService *service.QuotaService
	spec         string
	cron         *cron.Cron
}

// NewService 按 spec（标准 5 段 cron 表达式，UTC）调度月度额度重置
func NewService(quotaService *service.QuotaService, spec string) *Service {
	return &Service{
		quotaService: quotaService,
		spec:         spec,
		cron:         cron.New(cron.WithLocation(time.UTC)),
	}
}

// Start 启动定时任务
func (s *Service) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.resetMonthlyQuotas); err != nil {
		return err
	}
	s.cron.Start()
	log.WithField("spec", s.spec).Info("cron service started (monthly quota reset)")
	return nil
}

// Stop 停止调度并等待正在执行的任务结束
func (s *Service) Stop() {
	<-s.cron.Stop().Done()
	log.Info("cron service stopped")
}

// NextRun 下一次执行时间，未启动时为零值
func (s *Service) NextRun() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (s *Service) resetMonthlyQuotas() {
	if _, err := s.RunNow(context.Background()); err != nil {
		log.WithError(err).Error("monthly quota reset failed")
	}
}

// RunNow 立即执行一次月度重置（用于测试或手动触发）
func (s *Service) RunNow(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()

	now := time.Now().UTC()
	rows, err := s.quotaService.ResetStaleCounters(ctx, now)
	if err != nil {
		return 0, err
	}
	log.WithFields(log.Fields{"rows": rows, "month": now.Format("2006-01")}).Info("monthly quota reset completed")
	return rows, nil
}
