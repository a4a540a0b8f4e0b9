package dto

// QuotaInfo 发帖额度信息
type QuotaInfo struct {
	Plan                  string            `json:"plan"`
	FreePostsUsed         int               `json:"free_posts_used"`
	FreePostAllotment     int               `json:"free_post_allotment"`
	FreePostsRemaining    int               `json:"free_posts_remaining"`
	MonthlyPostsUsed      int               `json:"monthly_posts_used"`
	MonthlyPostLimit      int               `json:"monthly_post_limit"`
	MonthlyPostsRemaining int               `json:"monthly_posts_remaining"`
	ResetAt               string            `json:"reset_at"`
	Subscription          *SubscriptionInfo `json:"subscription,omitempty"`
}

// SubscriptionInfo 订阅镜像
type SubscriptionInfo struct {
	Plan              string `json:"plan"`
	CurrentPeriodEnd  string `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd bool   `json:"cancel_at_period_end"`
}
