package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"gorm.io/gorm"

	"github.com/qs3c/scribe_server/config"
	"github.com/qs3c/scribe_server/internal/model"
	"github.com/qs3c/scribe_server/internal/model/dto"
	"github.com/qs3c/scribe_server/internal/pkg/credential"
	"github.com/qs3c/scribe_server/internal/pkg/jwt"
	"github.com/qs3c/scribe_server/internal/pkg/oauth"
	"github.com/qs3c/scribe_server/internal/repository"
)

var ErrInvalidState = errors.New("invalid or expired oauth state")

type AuthService struct {
	profileRepo  *repository.ProfileRepository
	cfg          *config.Config
	twitterOAuth *oauth.TwitterOAuth
	stateStore   *oauth.StateStore
	credentials  *credential.Store
}

func NewAuthService(
	profileRepo *repository.ProfileRepository,
	cfg *config.Config,
	twitterOAuth *oauth.TwitterOAuth,
	stateStore *oauth.StateStore,
	credentials *credential.Store,
) *AuthService {
	return &AuthService{
		profileRepo:  profileRepo,
		cfg:          cfg,
		twitterOAuth: twitterOAuth,
		stateStore:   stateStore,
		credentials:  credentials,
	}
}

// GetTwitterAuthURL 生成授权地址，state 和 PKCE verifier 存入 Redis
func (s *AuthService) GetTwitterAuthURL(ctx context.Context, redirectURI string) (*dto.TwitterAuthURLResponse, error) {
	verifier := oauth2.GenerateVerifier()

	state, err := s.stateStore.GenerateState(ctx, oauth.StateData{
		RedirectURI:  redirectURI,
		CodeVerifier: verifier,
	})
	if err != nil {
		return nil, err
	}

	return &dto.TwitterAuthURLResponse{
		URL:   s.twitterOAuth.GetAuthURL(state, verifier),
		State: state,
	}, nil
}

// TwitterCallback 处理授权回调：换取 token、同步资料、保存凭证并签发登录 token。
// 返回 state 中记录的前端回跳地址。
func (s *AuthService) TwitterCallback(ctx context.Context, code, state string) (*dto.LoginResponse, string, error) {
	stateData, err := s.stateStore.ValidateState(ctx, state)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidState, err)
	}

	token, err := s.twitterOAuth.Exchange(ctx, code, stateData.CodeVerifier)
	if err != nil {
		return nil, "", fmt.Errorf("%w: failed to exchange code: %v", ErrAuth, err)
	}

	twitterUser, err := s.twitterOAuth.GetUser(ctx, token)
	if err != nil {
		return nil, "", fmt.Errorf("%w: failed to get twitter user: %v", ErrAuth, err)
	}

	profile, err := s.upsertProfile(ctx, twitterUser)
	if err != nil {
		return nil, "", err
	}

	if err := s.credentials.Save(ctx, profile.ID, token); err != nil {
		return nil, "", fmt.Errorf("%w: failed to store credential: %v", ErrStore, err)
	}

	jwtToken, err := jwt.GenerateToken(profile.ID, profile.Username, s.cfg.JWT.Secret, s.cfg.JWT.ExpireHours)
	if err != nil {
		return nil, "", err
	}

	log.WithFields(log.Fields{"user_id": profile.ID, "username": profile.Username}).Info("user signed in")

	return &dto.LoginResponse{
		Token: jwtToken,
		User:  buildUserInfo(profile),
	}, stateData.RedirectURI, nil
}

func (s *AuthService) upsertProfile(ctx context.Context, user *oauth.TwitterUser) (*model.Profile, error) {
	profile, err := s.profileRepo.GetByTwitterID(ctx, user.ID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}

	if profile != nil {
		err := s.profileRepo.UpdateFields(ctx, profile.ID, map[string]interface{}{
			"username":     user.Username,
			"display_name": user.Name,
			"avatar_url":   user.ProfileImageURL,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStore, err)
		}
		profile.Username = user.Username
		profile.DisplayName = user.Name
		profile.AvatarURL = user.ProfileImageURL
		return profile, nil
	}

	// 新用户：free 套餐，本月视为已重置
	now := time.Now().UTC()
	profile = &model.Profile{
		TwitterID:        user.ID,
		Username:         user.Username,
		DisplayName:      user.Name,
		AvatarURL:        user.ProfileImageURL,
		Plan:             model.PlanFree,
		MonthlyPostLimit: s.cfg.MonthlyLimit(model.PlanFree),
		LastPostReset:    &now,
		SubscriptionPlan: model.PlanFree,
	}
	if err := s.profileRepo.Create(ctx, profile); err != nil {
		// 并发回调已经创建
		existing, getErr := s.profileRepo.GetByTwitterID(ctx, user.ID)
		if getErr != nil {
			return nil, fmt.Errorf("%w: failed to create profile: %v", ErrStore, err)
		}
		return existing, nil
	}

	return profile, nil
}

// AccessToken 读取用户的第三方凭证，过期时刷新并写回
func (s *AuthService) AccessToken(ctx context.Context, userID int64) (string, error) {
	token, err := s.credentials.Load(ctx, userID)
	if err != nil {
		if errors.Is(err, credential.ErrNotFound) || errors.Is(err, credential.ErrCorrupt) {
			return "", ErrAuth
		}
		return "", fmt.Errorf("%w: %v", ErrStore, err)
	}

	if token.Valid() {
		return token.AccessToken, nil
	}

	fresh, err := s.twitterOAuth.TokenSource(ctx, token).Token()
	if err != nil {
		log.WithField("user_id", userID).WithError(err).Warn("failed to refresh twitter token")
		return "", ErrAuth
	}

	if fresh.AccessToken != token.AccessToken {
		if err := s.credentials.Save(ctx, userID, fresh); err != nil {
			log.WithField("user_id", userID).WithError(err).Error("failed to store refreshed twitter token")
		}
	}

	return fresh.AccessToken, nil
}

// Logout 删除保存的第三方凭证
func (s *AuthService) Logout(ctx context.Context, userID int64) error {
	return s.credentials.Delete(ctx, userID)
}

func buildUserInfo(profile *model.Profile) *dto.UserInfo {
	return &dto.UserInfo{
		ID:          profile.ID,
		Username:    profile.Username,
		DisplayName: profile.DisplayName,
		AvatarURL:   profile.AvatarURL,
		Plan:        profile.Plan,
		CreatedAt:   profile.CreatedAt.UTC().Format(time.RFC3339),
	}
}
