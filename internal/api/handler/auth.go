package handler

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/qs3c/scribe_server/internal/api/middleware"
	"github.com/qs3c/scribe_server/internal/pkg/response"
	"github.com/qs3c/scribe_server/internal/service"
)

type AuthHandler struct {
	authService *service.AuthService
	appURL      string
}

func NewAuthHandler(authService *service.AuthService, appURL string) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		appURL:      strings.TrimRight(appURL, "/"),
	}
}

// TwitterAuth 跳转到 Twitter 授权页
// GET /api/v1/auth/twitter?redirect_uri=
// 带 format=json 时返回授权地址而不跳转
func (h *AuthHandler) TwitterAuth(c *gin.Context) {
	redirectURI := c.Query("redirect_uri")
	if redirectURI == "" {
		redirectURI = h.appURL + "/dashboard"
	}
	if !h.allowedRedirect(redirectURI) {
		response.ParamError(c, "redirect_uri must point to the application")
		return
	}

	resp, err := h.authService.GetTwitterAuthURL(c.Request.Context(), redirectURI)
	if err != nil {
		log.WithError(err).Error("failed to create twitter auth url")
		response.ServerError(c, "")
		return
	}

	if c.Query("format") == "json" {
		response.Success(c, resp)
		return
	}
	c.Redirect(http.StatusTemporaryRedirect, resp.URL)
}

// TwitterCallback Twitter 授权回调
// GET /api/v1/auth/twitter/callback?code=&state=
// 登录成功后跳回前端，token 放在 URL fragment 中
func (h *AuthHandler) TwitterCallback(c *gin.Context) {
	code := c.Query("code")
	state := c.Query("state")
	if code == "" || state == "" {
		response.ParamError(c, "missing code or state")
		return
	}

	resp, redirectURI, err := h.authService.TwitterCallback(c.Request.Context(), code, state)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidState):
			response.ParamError(c, "invalid or expired state")
		case errors.Is(err, service.ErrAuth):
			response.AuthError(c, "twitter sign-in failed")
		default:
			log.WithError(err).Error("twitter callback failed")
			response.ServerError(c, "")
		}
		return
	}

	if redirectURI == "" {
		response.Success(c, resp)
		return
	}

	target, err := url.Parse(redirectURI)
	if err != nil {
		response.Success(c, resp)
		return
	}
	target.Fragment = url.Values{"token": {resp.Token}}.Encode()
	c.Redirect(http.StatusFound, target.String())
}

// Logout 退出登录，删除保存的 Twitter 凭证
// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	if err := h.authService.Logout(c.Request.Context(), userID); err != nil {
		log.WithField("user_id", userID).WithError(err).Error("failed to delete twitter credential")
		response.ServerError(c, "")
		return
	}

	response.SuccessWithMessage(c, "logged out", nil)
}

func (h *AuthHandler) allowedRedirect(redirectURI string) bool {
	if h.appURL == "" {
		return false
	}
	return redirectURI == h.appURL || strings.HasPrefix(redirectURI, h.appURL+"/")
}
