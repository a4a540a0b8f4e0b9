package dto

// CheckoutResponse 创建支付会话响应
type CheckoutResponse struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

// PortalResponse 订阅管理页地址
type PortalResponse struct {
	URL string `json:"url"`
}
