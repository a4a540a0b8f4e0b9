package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// 错误码定义
const (
	CodeSuccess          = 0
	CodeParamError       = 1000
	CodeAuthFailed       = 1001
	CodePermissionDenied = 1002
	CodeResourceNotFound = 1003
	CodeQuotaExceeded    = 1004
	CodeDuplicateAction  = 1005
	CodeUpstreamError    = 1006
	CodeServerError      = 5000
)

// 错误码对应的默认消息
var codeMessages = map[int]string{
	CodeSuccess:          "success",
	CodeParamError:       "invalid request",
	CodeAuthFailed:       "unauthorized",
	CodePermissionDenied: "permission denied",
	CodeResourceNotFound: "resource not found",
	CodeQuotaExceeded:    "posting limit reached",
	CodeDuplicateAction:  "duplicate action",
	CodeUpstreamError:    "upstream service error",
	CodeServerError:      "internal server error",
}

// 错误码对应的默认 HTTP 状态
var codeStatus = map[int]int{
	CodeParamError:       http.StatusBadRequest,
	CodeAuthFailed:       http.StatusUnauthorized,
	CodePermissionDenied: http.StatusForbidden,
	CodeResourceNotFound: http.StatusNotFound,
	CodeQuotaExceeded:    http.StatusTooManyRequests,
	CodeDuplicateAction:  http.StatusConflict,
	CodeUpstreamError:    http.StatusBadGateway,
	CodeServerError:      http.StatusInternalServerError,
}

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

// Created 资源创建成功
func Created(c *gin.Context, message string, data interface{}) {
	if message == "" {
		message = "success"
	}
	c.JSON(http.StatusCreated, Response{
		Code:    CodeSuccess,
		Message: message,
		Data:    data,
	})
}

// SuccessWithMessage 带自定义消息的成功响应
func SuccessWithMessage(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: message,
		Data:    data,
	})
}

// Error 错误响应，HTTP 状态由错误码决定
func Error(c *gin.Context, code int, message string) {
	status, ok := codeStatus[code]
	if !ok {
		status = http.StatusInternalServerError
	}
	ErrorWithStatus(c, status, code, message, nil)
}

// ErrorWithStatus 指定 HTTP 状态的错误响应，data 可携带上游错误详情
func ErrorWithStatus(c *gin.Context, status, code int, message string, data interface{}) {
	if message == "" {
		message = codeMessages[code]
	}
	c.JSON(status, Response{
		Code:    code,
		Message: message,
		Data:    data,
	})
}

// ParamError 参数错误
func ParamError(c *gin.Context, message string) {
	Error(c, CodeParamError, message)
}

// AuthError 认证失败
func AuthError(c *gin.Context, message string) {
	Error(c, CodeAuthFailed, message)
}

// PermissionError 权限不足
func PermissionError(c *gin.Context, message string) {
	Error(c, CodePermissionDenied, message)
}

// NotFoundError 资源不存在
func NotFoundError(c *gin.Context, message string) {
	Error(c, CodeResourceNotFound, message)
}

// QuotaError 配额不足
func QuotaError(c *gin.Context, message string) {
	Error(c, CodeQuotaExceeded, message)
}

// DuplicateError 重复操作
func DuplicateError(c *gin.Context, message string) {
	Error(c, CodeDuplicateAction, message)
}

// ServerError 服务器错误
func ServerError(c *gin.Context, message string) {
	Error(c, CodeServerError, message)
}
