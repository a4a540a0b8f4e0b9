package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/qs3c/scribe_server/internal/api/middleware"
	"github.com/qs3c/scribe_server/internal/pkg/billing"
	"github.com/qs3c/scribe_server/internal/pkg/response"
	"github.com/qs3c/scribe_server/internal/service"
)

const maxWebhookBodyBytes = 64 << 10

type BillingHandler struct {
	billingService *service.BillingService
}

func NewBillingHandler(billingService *service.BillingService) *BillingHandler {
	return &BillingHandler{
		billingService: billingService,
	}
}

// Checkout 创建订阅支付会话
// POST /api/v1/billing/checkout
func (h *BillingHandler) Checkout(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	resp, err := h.billingService.CreateCheckoutSession(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, userID, err)
		return
	}

	response.Success(c, resp)
}

// Portal 获取订阅管理页地址
// POST /api/v1/billing/portal
func (h *BillingHandler) Portal(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	resp, err := h.billingService.CreatePortalSession(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, userID, err)
		return
	}

	response.Success(c, resp)
}

// Webhook 接收 Stripe 事件
// POST /api/v1/billing/webhook
// 返回非 2xx 时 Stripe 会重试投递
func (h *BillingHandler) Webhook(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodyBytes)
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.ParamError(c, "request body too large or unreadable")
		return
	}

	event, err := h.billingService.ParseWebhook(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		log.WithError(err).Warn("rejected billing webhook")
		if errors.Is(err, billing.ErrInvalidSignature) {
			response.ParamError(c, "invalid signature")
			return
		}
		response.ParamError(c, "malformed event")
		return
	}

	if err := h.billingService.HandleEvent(c.Request.Context(), event); err != nil {
		if errors.Is(err, service.ErrBillingEvent) {
			response.ParamError(c, err.Error())
			return
		}
		response.ServerError(c, "")
		return
	}

	response.Success(c, gin.H{"received": true})
}

func (h *BillingHandler) fail(c *gin.Context, userID int64, err error) {
	switch {
	case errors.Is(err, service.ErrNoCustomer):
		response.ParamError(c, err.Error())
	case errors.Is(err, service.ErrProfileNotFound):
		response.NotFoundError(c, err.Error())
	default:
		log.WithField("user_id", userID).WithError(err).Error("billing request failed")
		response.ServerError(c, "")
	}
}
