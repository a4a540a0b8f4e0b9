package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/qs3c/scribe_server/config"
	"github.com/qs3c/scribe_server/internal/model/dto"
	"github.com/qs3c/scribe_server/internal/pkg/lock"
	"github.com/qs3c/scribe_server/internal/pkg/metrics"
	"github.com/qs3c/scribe_server/internal/pkg/twitter"
	"github.com/qs3c/scribe_server/internal/repository"
)

const (
	postLockPrefix = "scribe:post-lock:"
	commitTimeout  = 10 * time.Second
	lockGrace      = 5 * time.Second
)

type PostService struct {
	profileRepo  *repository.ProfileRepository
	quotaService *QuotaService
	twitter      *twitter.Client
	locker       *lock.Locker
	cfg          *config.Config
	metrics      *metrics.Metrics
	now          func() time.Time
}

func NewPostService(
	profileRepo *repository.ProfileRepository,
	quotaService *QuotaService,
	twitterClient *twitter.Client,
	rdb *redis.Client,
	cfg *config.Config,
	m *metrics.Metrics,
) *PostService {
	return &PostService{
		profileRepo:  profileRepo,
		quotaService: quotaService,
		twitter:      twitterClient,
		locker:       lock.NewLocker(rdb, postLockPrefix),
		cfg:          cfg,
		metrics:      m,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// ValidateText 校验发帖文本：非空白且不超过长度上限（按 Unicode 字符计）
func (s *PostService) ValidateText(text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: text must not be empty", ErrValidation)
	}
	if n := utf8.RuneCountInString(text); n > s.cfg.Quota.MaxPostLength {
		return fmt.Errorf("%w: text is %d characters, limit is %d", ErrValidation, n, s.cfg.Quota.MaxPostLength)
	}
	return nil
}

// CreatePost 校验、判定额度、调用第三方发帖，成功后提交计数。
// 第三方成功后计数提交失败只记录日志，仍返回发帖成功。
func (s *PostService) CreatePost(ctx context.Context, userID int64, credential, text string) (*dto.CreatePostResponse, error) {
	if err := s.ValidateText(text); err != nil {
		s.observe(metrics.PostInvalid)
		return nil, err
	}
	if credential == "" {
		return nil, ErrAuth
	}

	release, err := s.locker.Acquire(ctx, strconv.FormatInt(userID, 10), s.cfg.UpstreamTimeout()+commitTimeout+lockGrace)
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			s.observe(metrics.PostInProgress)
			return nil, ErrPostInProgress
		}
		return nil, fmt.Errorf("%w: acquire post lock: %v", ErrStore, err)
	}
	defer release()

	profile, err := s.profileRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProfileNotFound
		}
		s.observe(metrics.PostStoreFailed)
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}

	now := s.now()
	decision := s.quotaService.Evaluate(profile, now)
	if !decision.Allowed {
		s.observe(metrics.PostQuotaExceeded)
		return nil, ErrQuotaExceeded
	}

	upstreamCtx, cancel := context.WithTimeout(ctx, s.cfg.UpstreamTimeout())
	tweet, err := s.twitter.CreateTweet(upstreamCtx, credential, text)
	cancel()
	if err != nil {
		return nil, s.upstreamFailure(userID, err)
	}

	// 帖子已经发出，请求取消也必须提交计数
	commitCtx, cancelCommit := context.WithTimeout(context.WithoutCancel(ctx), commitTimeout)
	defer cancelCommit()
	if err := s.profileRepo.ApplyPostUsage(commitCtx, userID, decision.Usage(now)); err != nil {
		log.WithFields(log.Fields{
			"user_id":           userID,
			"post_id":           tweet.ID,
			"increment_free":    decision.IncrementFree,
			"increment_monthly": decision.IncrementMonthly,
			"monthly_reset":     decision.NeedsMonthlyReset,
		}).WithError(err).Error("post published but usage counters were not stored")
		if s.metrics != nil {
			s.metrics.PostCommitFailures.Inc()
		}
	}

	s.observe(metrics.PostCreated)
	log.WithFields(log.Fields{"user_id": userID, "post_id": tweet.ID}).Info("post created")

	return &dto.CreatePostResponse{PostID: tweet.ID, Text: text}, nil
}

func (s *PostService) upstreamFailure(userID int64, err error) error {
	s.observe(metrics.PostUpstreamFailed)

	var apiErr *twitter.APIError
	if errors.As(err, &apiErr) {
		if s.metrics != nil {
			s.metrics.UpstreamErrorsTotal.WithLabelValues(string(apiErr.Kind)).Inc()
		}
		log.WithFields(log.Fields{
			"user_id": userID,
			"kind":    apiErr.Kind,
			"status":  apiErr.Status,
			"code":    apiErr.Code,
		}).Warn("twitter rejected post")
		return newUpstreamPostError(apiErr)
	}

	if s.metrics != nil {
		s.metrics.UpstreamErrorsTotal.WithLabelValues(string(twitter.KindUnknown)).Inc()
	}
	log.WithField("user_id", userID).WithError(err).Warn("twitter request failed")
	return &UpstreamPostError{Kind: twitter.KindUnknown, Message: err.Error()}
}

func (s *PostService) observe(result string) {
	if s.metrics != nil {
		s.metrics.PostsTotal.WithLabelValues(result).Inc()
	}
}
