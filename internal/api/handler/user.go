package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/qs3c/scribe_server/internal/api/middleware"
	"github.com/qs3c/scribe_server/internal/pkg/response"
	"github.com/qs3c/scribe_server/internal/service"
)

type UserHandler struct {
	userService  *service.UserService
	quotaService *service.QuotaService
}

func NewUserHandler(userService *service.UserService, quotaService *service.QuotaService) *UserHandler {
	return &UserHandler{
		userService:  userService,
		quotaService: quotaService,
	}
}

// GetProfile 获取当前用户信息
// GET /api/v1/user/profile
func (h *UserHandler) GetProfile(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	info, err := h.userService.GetProfile(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, userID, err)
		return
	}

	response.Success(c, info)
}

// GetQuota 获取当前用户额度
// GET /api/v1/user/quota
func (h *UserHandler) GetQuota(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	info, err := h.quotaService.GetQuotaInfo(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, userID, err)
		return
	}

	response.Success(c, info)
}

func (h *UserHandler) fail(c *gin.Context, userID int64, err error) {
	if errors.Is(err, service.ErrProfileNotFound) {
		response.NotFoundError(c, err.Error())
		return
	}
	log.WithField("user_id", userID).WithError(err).Error("failed to load profile")
	response.ServerError(c, "")
}
