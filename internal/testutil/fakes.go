package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"
)

// FakeTwitter 模拟发帖、用户信息和 token 接口
type FakeTwitter struct {
	Server *httptest.Server

	mu         sync.Mutex
	posts      []string
	failStatus int
	failBody   string
	tokenSeq   int

	// OnPost 在成功发帖前调用
	OnPost func()
}

func NewFakeTwitter(t *testing.T) *FakeTwitter {
	t.Helper()

	f := &FakeTwitter{}
	mux := http.NewServeMux()
	mux.HandleFunc("/2/tweets", f.handleTweet)
	mux.HandleFunc("/2/users/me", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"data": map[string]string{
				"id":                "tw_1001",
				"name":              "Fake User",
				"username":          "fakeuser",
				"profile_image_url": "https://pbs.example/fake.png",
			},
		})
	})
	mux.HandleFunc("/2/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.tokenSeq++
		n := f.tokenSeq
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"access_token":  fmt.Sprintf("access-%d", n),
			"refresh_token": fmt.Sprintf("refresh-%d", n),
			"token_type":    "bearer",
			"expires_in":    7200,
		})
	})

	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Server.Close)
	return f
}

func (f *FakeTwitter) URL() string {
	return f.Server.URL
}

// Fail 之后的发帖请求都返回指定错误
func (f *FakeTwitter) Fail(status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failStatus = status
	f.failBody = body
}

// Posts 返回已经成功发出的文本
func (f *FakeTwitter) Posts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.posts...)
}

func (f *FakeTwitter) handleTweet(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text string `json:"text"`
	}
	json.NewDecoder(r.Body).Decode(&body)

	if f.OnPost != nil {
		f.OnPost()
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failStatus != 0 {
		w.WriteHeader(f.failStatus)
		w.Write([]byte(f.failBody))
		return
	}

	f.posts = append(f.posts, body.Text)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"data": map[string]string{
			"id":   fmt.Sprintf("%d", 1000+len(f.posts)),
			"text": body.Text,
		},
	})
}

// FakeStripe 模拟支付接口，只实现用到的几个路由
type FakeStripe struct {
	Server *httptest.Server

	mu            sync.Mutex
	subscriptions map[string]string
	customers     int
	checkouts     []url.Values
	portals       []url.Values
}

func NewFakeStripe(t *testing.T) *FakeStripe {
	t.Helper()

	f := &FakeStripe{subscriptions: map[string]string{}}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/customers", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.customers++
		n := f.customers
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]string{"id": fmt.Sprintf("cus_fake_%d", n), "object": "customer"})
	})
	mux.HandleFunc("/v1/checkout/sessions", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		f.mu.Lock()
		f.checkouts = append(f.checkouts, r.PostForm)
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]string{
			"id":     "cs_fake_1",
			"object": "checkout.session",
			"url":    "https://checkout.stripe.test/cs_fake_1",
		})
	})
	mux.HandleFunc("/v1/billing_portal/sessions", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		f.mu.Lock()
		f.portals = append(f.portals, r.PostForm)
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]string{
			"id":     "bps_fake_1",
			"object": "billing_portal.session",
			"url":    "https://billing.stripe.test/p/session",
		})
	})
	mux.HandleFunc("/v1/subscriptions/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/v1/subscriptions/")
		f.mu.Lock()
		body, ok := f.subscriptions[id]
		f.mu.Unlock()
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]interface{}{
				"error": map[string]string{
					"type":    "invalid_request_error",
					"message": "No such subscription: '" + id + "'",
				},
			})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	})

	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Server.Close)
	return f
}

func (f *FakeStripe) URL() string {
	return f.Server.URL
}

// SetSubscription 注册一个可查询的 active 订阅
func (f *FakeStripe) SetSubscription(id, priceID string, periodEnd time.Time, cancelAtPeriodEnd bool) {
	f.SetSubscriptionWithStatus(id, priceID, "active", periodEnd, cancelAtPeriodEnd)
}

func (f *FakeStripe) SetSubscriptionWithStatus(id, priceID, status string, periodEnd time.Time, cancelAtPeriodEnd bool) {
	body := fmt.Sprintf(`{"id":%q,"object":"subscription","status":%q,"current_period_end":%d,"cancel_at_period_end":%t,`+
		`"items":{"object":"list","data":[{"id":"si_%s","object":"subscription_item","price":{"id":%q,"object":"price"}}]}}`,
		id, status, periodEnd.Unix(), cancelAtPeriodEnd, id, priceID)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscriptions[id] = body
}

func (f *FakeStripe) CustomersCreated() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.customers
}

func (f *FakeStripe) Checkouts() []url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]url.Values(nil), f.checkouts...)
}

func (f *FakeStripe) Portals() []url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]url.Values(nil), f.portals...)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
