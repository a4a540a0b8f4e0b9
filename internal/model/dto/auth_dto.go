package dto

// TwitterAuthURLResponse 授权跳转地址
type TwitterAuthURLResponse struct {
	URL   string `json:"url"`
	State string `json:"state"`
}

// LoginResponse 登录响应
type LoginResponse struct {
	Token string    `json:"token"`
	User  *UserInfo `json:"user"`
}

// UserInfo 用户信息（返回给前端）
type UserInfo struct {
	ID          int64      `json:"id"`
	Username    string     `json:"username"`
	DisplayName string     `json:"display_name"`
	AvatarURL   string     `json:"avatar_url"`
	Plan        string     `json:"plan"`
	QuotaInfo   *QuotaInfo `json:"quota_info,omitempty"`
	CreatedAt   string     `json:"created_at,omitempty"`
}
