package service

import (
	"errors"
	"fmt"

	"github.com/qs3c/scribe_server/internal/pkg/twitter"
)

var (
	ErrValidation      = errors.New("invalid post text")
	ErrAuth            = errors.New("not authenticated with twitter")
	ErrQuotaExceeded   = errors.New("posting limit reached")
	ErrPostInProgress  = errors.New("another post is already in progress")
	ErrStore           = errors.New("profile store error")
	ErrBillingEvent    = errors.New("billing event rejected")
	ErrProfileNotFound = errors.New("profile not found")
	ErrNoCustomer      = errors.New("no active subscription found for this account")
	ErrBillingFailed   = errors.New("billing provider request failed")
)

// UpstreamPostError 第三方接口拒绝发帖，保留原始状态码和错误信息
type UpstreamPostError struct {
	Kind    twitter.ErrorKind
	Status  int
	Code    int
	Message string
}

func (e *UpstreamPostError) Error() string {
	return fmt.Sprintf("twitter rejected post (%s): %s", e.Kind, e.Message)
}

func newUpstreamPostError(apiErr *twitter.APIError) *UpstreamPostError {
	return &UpstreamPostError{
		Kind:    apiErr.Kind,
		Status:  apiErr.Status,
		Code:    apiErr.Code,
		Message: apiErr.Message,
	}
}
