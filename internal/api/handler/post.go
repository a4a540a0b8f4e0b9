package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/qs3c/scribe_server/internal/api/middleware"
	"github.com/qs3c/scribe_server/internal/model/dto"
	"github.com/qs3c/scribe_server/internal/pkg/response"
	"github.com/qs3c/scribe_server/internal/pkg/twitter"
	"github.com/qs3c/scribe_server/internal/service"
)

type PostHandler struct {
	postService *service.PostService
	authService *service.AuthService
}

func NewPostHandler(postService *service.PostService, authService *service.AuthService) *PostHandler {
	return &PostHandler{
		postService: postService,
		authService: authService,
	}
}

// Create 发布一条帖子
// POST /api/v1/posts
func (h *PostHandler) Create(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req dto.CreatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	// 文本不合法时不读取任何存储
	if err := h.postService.ValidateText(req.Text); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	accessToken, err := h.authService.AccessToken(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, userID, err)
		return
	}

	resp, err := h.postService.CreatePost(c.Request.Context(), userID, accessToken, req.Text)
	if err != nil {
		h.fail(c, userID, err)
		return
	}

	response.Created(c, "posted", resp)
}

func (h *PostHandler) fail(c *gin.Context, userID int64, err error) {
	var upstreamErr *service.UpstreamPostError
	switch {
	case errors.As(err, &upstreamErr):
		status, code := upstreamStatus(upstreamErr.Kind)
		response.ErrorWithStatus(c, status, code, upstreamErr.Message, dto.UpstreamErrorDetail{
			Kind:    string(upstreamErr.Kind),
			Code:    upstreamErr.Code,
			Message: upstreamErr.Message,
		})
	case errors.Is(err, service.ErrValidation):
		response.ParamError(c, err.Error())
	case errors.Is(err, service.ErrAuth):
		response.AuthError(c, "twitter authorization missing or expired, please sign in again")
	case errors.Is(err, service.ErrQuotaExceeded):
		response.QuotaError(c, "")
	case errors.Is(err, service.ErrPostInProgress):
		response.DuplicateError(c, err.Error())
	case errors.Is(err, service.ErrProfileNotFound):
		response.NotFoundError(c, err.Error())
	default:
		log.WithField("user_id", userID).WithError(err).Error("failed to create post")
		response.ServerError(c, "")
	}
}

// upstreamStatus 第三方错误映射为本地状态
func upstreamStatus(kind twitter.ErrorKind) (int, int) {
	switch kind {
	case twitter.KindRateLimited:
		return http.StatusTooManyRequests, response.CodeUpstreamError
	case twitter.KindDuplicate:
		return http.StatusConflict, response.CodeDuplicateAction
	case twitter.KindTooLong:
		return http.StatusBadRequest, response.CodeParamError
	case twitter.KindAuthInvalid:
		return http.StatusUnauthorized, response.CodeAuthFailed
	default:
		return http.StatusBadGateway, response.CodeUpstreamError
	}
}
