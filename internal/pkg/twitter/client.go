package twitter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const defaultAPIBaseURL = "https://api.twitter.com"

// Legacy error codes the API still reports in errors[].code.
const (
	codeRateLimited = 185
	codeTooLong     = 186
	codeDuplicate   = 187
)

// ErrorKind classifies a rejected post.
type ErrorKind string

const (
	KindRateLimited ErrorKind = "rate_limited"
	KindDuplicate   ErrorKind = "duplicate"
	KindTooLong     ErrorKind = "too_long"
	KindAuthInvalid ErrorKind = "auth_invalid"
	KindUnknown     ErrorKind = "unknown"
)

// APIError is returned when the social API rejects a post.
type APIError struct {
	Status  int
	Code    int
	Type    string
	Message string
	Kind    ErrorKind
}

func (e *APIError) Error() string {
	return fmt.Sprintf("twitter api error (status %d, code %d): %s", e.Status, e.Code, e.Message)
}

// Tweet is the created post.
type Tweet struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type Client struct {
	baseURL string
	timeout time.Duration
	// http client used underneath the oauth2 transport
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultAPIBaseURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		timeout:    timeout,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// CreateTweet posts text on behalf of the holder of accessToken.
func (c *Client) CreateTweet(ctx context.Context, accessToken, text string) (*Tweet, error) {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, err
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken}))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/2/tweets", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to post tweet: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read twitter response: %w", err)
	}

	var payload struct {
		Data   *Tweet `json:"data"`
		Title  string `json:"title"`
		Detail string `json:"detail"`
		Errors []struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"errors"`
	}
	// 非 JSON 响应按状态码处理
	_ = json.Unmarshal(raw, &payload)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		if len(payload.Errors) > 0 {
			apiErr.Code = payload.Errors[0].Code
			apiErr.Type = payload.Errors[0].Type
			apiErr.Message = payload.Errors[0].Message
		}
		if apiErr.Message == "" {
			apiErr.Message = payload.Detail
		}
		if apiErr.Message == "" {
			apiErr.Message = fmt.Sprintf("Twitter API responded with status %d", resp.StatusCode)
		}
		apiErr.Kind = classify(apiErr.Status, apiErr.Code, apiErr.Message)
		return nil, apiErr
	}

	if payload.Data == nil || payload.Data.ID == "" {
		return nil, fmt.Errorf("invalid response from twitter api: %s", string(raw))
	}

	return payload.Data, nil
}

func classify(status, code int, message string) ErrorKind {
	switch code {
	case codeRateLimited:
		return KindRateLimited
	case codeTooLong:
		return KindTooLong
	case codeDuplicate:
		return KindDuplicate
	}

	switch status {
	case http.StatusTooManyRequests:
		return KindRateLimited
	case http.StatusUnauthorized:
		return KindAuthInvalid
	}

	// v2 reports duplicates as 403 with only a detail string
	lower := strings.ToLower(message)
	if status == http.StatusForbidden && strings.Contains(lower, "duplicate") {
		return KindDuplicate
	}
	if status == http.StatusForbidden {
		return KindAuthInvalid
	}
	return KindUnknown
}
