package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/qs3c/scribe_server/config"
	"github.com/qs3c/scribe_server/internal/model"
	"github.com/qs3c/scribe_server/internal/model/dto"
	"github.com/qs3c/scribe_server/internal/pkg/billing"
	"github.com/qs3c/scribe_server/internal/pkg/metrics"
	"github.com/qs3c/scribe_server/internal/repository"
)

type BillingService struct {
	profileRepo *repository.ProfileRepository
	eventRepo   *repository.BillingEventRepository
	billing     *billing.Client
	cfg         *config.Config
	metrics     *metrics.Metrics
	now         func() time.Time
}

func NewBillingService(
	profileRepo *repository.ProfileRepository,
	eventRepo *repository.BillingEventRepository,
	billingClient *billing.Client,
	cfg *config.Config,
	m *metrics.Metrics,
) *BillingService {
	return &BillingService{
		profileRepo: profileRepo,
		eventRepo:   eventRepo,
		billing:     billingClient,
		cfg:         cfg,
		metrics:     m,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// ParseWebhook 校验签名并解析事件
func (s *BillingService) ParseWebhook(payload []byte, signature string) (billing.Event, error) {
	event, err := s.billing.ConstructEvent(payload, signature)
	if err != nil {
		if errors.Is(err, billing.ErrInvalidSignature) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrBillingEvent, err)
	}
	return event, nil
}

// HandleEvent 按事件类型更新订阅镜像字段。所有写入都是按 id 覆盖，重复投递结果一致。
func (s *BillingService) HandleEvent(ctx context.Context, event billing.Event) error {
	logger := log.WithFields(log.Fields{"event_id": event.EventID(), "event_type": event.Kind()})

	if event.EventID() != "" {
		processed, err := s.eventRepo.Processed(ctx, event.EventID())
		if err != nil {
			return fmt.Errorf("%w: %v", ErrStore, err)
		}
		if processed {
			logger.Debug("billing event already applied")
			s.observe(event.Kind(), "duplicate")
			return nil
		}
	}

	var (
		profileID *int64
		subID     string
		err       error
	)

	switch e := event.(type) {
	case billing.CheckoutCompleted:
		subID = e.SubscriptionID
		profileID, err = s.handleCheckoutCompleted(ctx, e)
	case billing.InvoicePaid:
		subID = e.SubscriptionID
		err = s.handleInvoicePaid(ctx, e)
	case billing.InvoiceFailed:
		subID = e.SubscriptionID
		err = s.handleInvoiceFailed(ctx, e)
	case billing.SubscriptionCanceled:
		subID = e.SubscriptionID
		err = s.handleSubscriptionCanceled(ctx, e)
	case billing.Unrecognized:
		logger.Debug("ignoring unhandled billing event")
		s.observe(event.Kind(), model.BillingEventIgnored)
		s.record(ctx, event, nil, "", model.BillingEventIgnored)
		return nil
	default:
		return fmt.Errorf("%w: unsupported event %T", ErrBillingEvent, event)
	}

	if err != nil {
		logger.WithError(err).Error("failed to apply billing event")
		s.observe(event.Kind(), "error")
		return err
	}

	logger.WithField("subscription_id", subID).Info("billing event applied")
	s.observe(event.Kind(), model.BillingEventApplied)
	s.record(ctx, event, profileID, subID, model.BillingEventApplied)
	return nil
}

func (s *BillingService) handleCheckoutCompleted(ctx context.Context, e billing.CheckoutCompleted) (*int64, error) {
	if e.UserID == "" {
		return nil, fmt.Errorf("%w: checkout session has no user_id metadata", ErrBillingEvent)
	}
	userID, err := strconv.ParseInt(e.UserID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid user_id %q", ErrBillingEvent, e.UserID)
	}
	if e.SubscriptionID == "" {
		return nil, fmt.Errorf("%w: checkout session has no subscription", ErrBillingEvent)
	}

	detail, err := s.billing.GetSubscription(ctx, e.SubscriptionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBillingFailed, err)
	}

	fields := map[string]interface{}{
		"stripe_subscription_id":                   detail.ID,
		"stripe_subscription_current_period_end":   detail.CurrentPeriodEnd,
		"stripe_subscription_cancel_at_period_end": detail.CancelAtPeriodEnd,
	}
	if detail.Canceled() {
		// 结账完成前订阅已被取消，只记录订阅，不升级套餐
		fields["stripe_subscription_plan"] = model.PlanFree
		log.WithFields(log.Fields{
			"user_id":         userID,
			"subscription_id": detail.ID,
		}).Warn("checkout completed for a canceled subscription, plan not upgraded")
	} else {
		fields["stripe_subscription_plan"] = detail.PriceID
		fields["plan"] = model.PlanPaid
		fields["monthly_post_limit"] = s.cfg.MonthlyLimit(model.PlanPaid)
	}
	if err := s.profileRepo.UpdateFields(ctx, userID, fields); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: no profile for user %d", ErrBillingEvent, userID)
		}
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}

	if e.CustomerID != "" {
		if _, err := s.profileRepo.SetPaymentCustomerID(ctx, userID, e.CustomerID); err != nil {
			log.WithField("user_id", userID).WithError(err).Warn("failed to store payment customer id")
		}
	}

	return &userID, nil
}

func (s *BillingService) handleInvoicePaid(ctx context.Context, e billing.InvoicePaid) error {
	if e.SubscriptionID == "" {
		return fmt.Errorf("%w: invoice has no subscription", ErrBillingEvent)
	}

	detail, err := s.billing.GetSubscription(ctx, e.SubscriptionID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBillingFailed, err)
	}

	// 扣款失败后补缴成功，订阅仍有效时恢复付费套餐
	var restore map[string]interface{}
	if detail.Active() {
		restore = map[string]interface{}{
			"stripe_subscription_plan": detail.PriceID,
			"plan":                     model.PlanPaid,
			"monthly_post_limit":       s.cfg.MonthlyLimit(model.PlanPaid),
		}
	}

	// 旧事件不会把账期结束时间往回改
	rows, err := s.profileRepo.AdvanceSubscriptionPeriodEnd(ctx, e.SubscriptionID, detail.CurrentPeriodEnd, restore)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}
	if rows == 0 {
		return s.ensureSubscriptionOwner(ctx, e.SubscriptionID)
	}
	return nil
}

func (s *BillingService) handleInvoiceFailed(ctx context.Context, e billing.InvoiceFailed) error {
	if e.SubscriptionID == "" {
		return fmt.Errorf("%w: invoice has no subscription", ErrBillingEvent)
	}

	return s.updateBySubscription(ctx, e.SubscriptionID, map[string]interface{}{
		"stripe_subscription_plan": model.PlanFree,
		"plan":                     model.PlanFree,
		"monthly_post_limit":       s.cfg.MonthlyLimit(model.PlanFree),
	})
}

func (s *BillingService) handleSubscriptionCanceled(ctx context.Context, e billing.SubscriptionCanceled) error {
	if e.SubscriptionID == "" {
		return fmt.Errorf("%w: subscription event has no id", ErrBillingEvent)
	}

	return s.updateBySubscription(ctx, e.SubscriptionID, map[string]interface{}{
		"stripe_subscription_cancel_at_period_end": false,
		"stripe_subscription_updated_at":           s.now(),
		"stripe_subscription_plan":                 model.PlanFree,
		"stripe_subscription_current_period_end":   e.CurrentPeriodEnd,
		"plan":                                     model.PlanFree,
		"monthly_post_limit":                       s.cfg.MonthlyLimit(model.PlanFree),
	})
}

func (s *BillingService) updateBySubscription(ctx context.Context, subscriptionID string, fields map[string]interface{}) error {
	rows, err := s.profileRepo.UpdateBySubscriptionID(ctx, subscriptionID, fields)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}
	if rows == 0 {
		return s.ensureSubscriptionOwner(ctx, subscriptionID)
	}
	return nil
}

// ensureSubscriptionOwner 没有更新到行时区分“无人持有该订阅”和“值未变化”
func (s *BillingService) ensureSubscriptionOwner(ctx context.Context, subscriptionID string) error {
	_, err := s.profileRepo.GetBySubscriptionID(ctx, subscriptionID)
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: no profile for subscription %s", ErrBillingEvent, subscriptionID)
	}
	return fmt.Errorf("%w: %v", ErrStore, err)
}

func (s *BillingService) record(ctx context.Context, event billing.Event, profileID *int64, subscriptionID, status string) {
	if event.EventID() == "" {
		return
	}
	err := s.eventRepo.Record(ctx, &model.BillingEvent{
		ID:             event.EventID(),
		Type:           event.Kind(),
		ProfileID:      profileID,
		SubscriptionID: subscriptionID,
		Status:         status,
		ProcessedAt:    s.now(),
	})
	if err != nil {
		log.WithField("event_id", event.EventID()).WithError(err).Warn("failed to record billing event")
	}
}

func (s *BillingService) observe(kind, result string) {
	if s.metrics != nil {
		s.metrics.BillingEventsTotal.WithLabelValues(kind, result).Inc()
	}
}

// CreateCheckoutSession 创建订阅支付会话，首次调用时创建支付客户
func (s *BillingService) CreateCheckoutSession(ctx context.Context, userID int64) (*dto.CheckoutResponse, error) {
	if s.cfg.Stripe.PriceID == "" {
		return nil, fmt.Errorf("%w: stripe.price_id is not configured", ErrBillingFailed)
	}

	profile, err := s.getProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	customerID, err := s.ensureCustomer(ctx, profile)
	if err != nil {
		return nil, err
	}

	appURL := strings.TrimRight(s.cfg.Server.AppURL, "/")
	sess, err := s.billing.CreateCheckoutSession(ctx, billing.CheckoutParams{
		UserID:     userID,
		CustomerID: customerID,
		PriceID:    s.cfg.Stripe.PriceID,
		SuccessURL: appURL + "/dashboard?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  appURL + "/dashboard",
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBillingFailed, err)
	}

	return &dto.CheckoutResponse{SessionID: sess.ID, URL: sess.URL}, nil
}

// CreatePortalSession 返回订阅管理页地址
func (s *BillingService) CreatePortalSession(ctx context.Context, userID int64) (*dto.PortalResponse, error) {
	profile, err := s.getProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile.PaymentCustomerID == nil || *profile.PaymentCustomerID == "" {
		return nil, ErrNoCustomer
	}

	url, err := s.billing.CreatePortalSession(ctx, *profile.PaymentCustomerID,
		strings.TrimRight(s.cfg.Server.AppURL, "/")+"/dashboard")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBillingFailed, err)
	}

	return &dto.PortalResponse{URL: url}, nil
}

func (s *BillingService) ensureCustomer(ctx context.Context, profile *model.Profile) (string, error) {
	if profile.PaymentCustomerID != nil && *profile.PaymentCustomerID != "" {
		return *profile.PaymentCustomerID, nil
	}

	customerID, err := s.billing.CreateCustomer(ctx, profile.ID, profile.Username)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBillingFailed, err)
	}

	stored, err := s.profileRepo.SetPaymentCustomerID(ctx, profile.ID, customerID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStore, err)
	}
	if stored {
		return customerID, nil
	}

	// 并发请求已经绑定了客户，以库里的为准
	current, err := s.getProfile(ctx, profile.ID)
	if err != nil {
		return "", err
	}
	if current.PaymentCustomerID == nil || *current.PaymentCustomerID == "" {
		return "", fmt.Errorf("%w: payment customer was not stored", ErrStore)
	}
	log.WithFields(log.Fields{
		"user_id":  profile.ID,
		"orphaned": customerID,
	}).Warn("payment customer created concurrently, keeping the stored one")
	return *current.PaymentCustomerID, nil
}

func (s *BillingService) getProfile(ctx context.Context, userID int64) (*model.Profile, error) {
	profile, err := s.profileRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}
	return profile, nil
}
