package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/scribe_server/internal/model/dto"
	"github.com/qs3c/scribe_server/internal/repository"
)

type UserService struct {
	profileRepo  *repository.ProfileRepository
	quotaService *QuotaService
}

func NewUserService(profileRepo *repository.ProfileRepository, quotaService *QuotaService) *UserService {
	return &UserService{
		profileRepo:  profileRepo,
		quotaService: quotaService,
	}
}

// GetProfile 获取用户详情（含额度）
func (s *UserService) GetProfile(ctx context.Context, userID int64) (*dto.UserInfo, error) {
	profile, err := s.profileRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}

	info := buildUserInfo(profile)
	info.QuotaInfo = s.quotaService.BuildQuotaInfo(profile, time.Now().UTC())
	return info, nil
}
