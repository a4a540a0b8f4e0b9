package dto

// CreatePostRequest 发帖请求，文本校验在 service 层完成
type CreatePostRequest struct {
	Text string `json:"text"`
}

// CreatePostResponse 发帖响应
type CreatePostResponse struct {
	PostID string `json:"post_id"`
	Text   string `json:"text"`
}

// UpstreamErrorDetail 第三方拒绝发帖时透传的错误信息
type UpstreamErrorDetail struct {
	Kind    string `json:"kind"`
	Code    int    `json:"code,omitempty"`
	Message string `json:"message"`
}
