package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"gorm.io/gorm"

	"github.com/qs3c/scribe_server/config"
	"github.com/qs3c/scribe_server/internal/api/middleware"
	"github.com/qs3c/scribe_server/internal/pkg/billing"
	"github.com/qs3c/scribe_server/internal/pkg/credential"
	"github.com/qs3c/scribe_server/internal/pkg/metrics"
	"github.com/qs3c/scribe_server/internal/pkg/oauth"
	"github.com/qs3c/scribe_server/internal/pkg/response"
	"github.com/qs3c/scribe_server/internal/pkg/twitter"
	"github.com/qs3c/scribe_server/internal/repository"
	"github.com/qs3c/scribe_server/internal/service"
	"github.com/qs3c/scribe_server/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const (
	testAppURL        = "http://app.test"
	testWebhookSecret = "whsec_handler_secret"
)

// testContext 本地测试上下文
type testContext struct {
	DB          *gorm.DB
	Redis       *miniredis.Miniredis
	Config      *config.Config
	Twitter     *testutil.FakeTwitter
	Stripe      *testutil.FakeStripe
	Credentials *credential.Store
	Repo        *repository.ProfileRepository

	Auth    *AuthHandler
	User    *UserHandler
	Post    *PostHandler
	Billing *BillingHandler
}

func setupHandlers(t *testing.T) (*testContext, func()) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	rdb, mr, closeRedis := testutil.SetupTestRedis(t)
	fakeTwitter := testutil.NewFakeTwitter(t)
	fakeStripe := testutil.NewFakeStripe(t)

	cfg := &config.Config{
		Server: config.ServerConfig{Mode: "test", AppURL: testAppURL},
		JWT:    config.JWTConfig{Secret: "test-secret-key", ExpireHours: 24},
		OAuth: config.OAuthConfig{
			Twitter: config.TwitterOAuthConfig{
				ClientID:      "cid",
				ClientSecret:  "csecret",
				RedirectURI:   "http://localhost:8080/api/v1/auth/twitter/callback",
				APIBaseURL:    fakeTwitter.URL(),
				CredentialKey: "cred-key",
			},
		},
		Stripe: config.StripeConfig{
			SecretKey:     "sk_test_123",
			WebhookSecret: testWebhookSecret,
			PriceID:       "price_monthly",
		},
		HTTP: config.HTTPConfig{TimeoutSeconds: 5},
		Plans: map[string]config.PlanConfig{
			"free": {MonthlyPostLimit: 0},
			"paid": {MonthlyPostLimit: 100},
		},
	}
	cfg.ApplyDefaults()

	m := metrics.New(nil)
	profileRepo := repository.NewProfileRepository(db)
	eventRepo := repository.NewBillingEventRepository(db)
	credentials := credential.NewStore(rdb, cfg.OAuth.Twitter.CredentialKey, 0)
	twitterOAuth := oauth.NewTwitterOAuth(cfg.OAuth.Twitter.ClientID, cfg.OAuth.Twitter.ClientSecret,
		cfg.OAuth.Twitter.RedirectURI, cfg.OAuth.Twitter.APIBaseURL)
	billingClient := billing.NewClient(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret, billing.NewBackends(fakeStripe.URL()))

	quotaService := service.NewQuotaService(profileRepo, cfg, m)
	authService := service.NewAuthService(profileRepo, cfg, twitterOAuth, oauth.NewStateStore(rdb), credentials)
	postService := service.NewPostService(profileRepo, quotaService,
		twitter.NewClient(fakeTwitter.URL(), cfg.UpstreamTimeout()), rdb, cfg, m)
	billingService := service.NewBillingService(profileRepo, eventRepo, billingClient, cfg, m)
	userService := service.NewUserService(profileRepo, quotaService)

	ctx := &testContext{
		DB:          db,
		Redis:       mr,
		Config:      cfg,
		Twitter:     fakeTwitter,
		Stripe:      fakeStripe,
		Credentials: credentials,
		Repo:        profileRepo,
		Auth:        NewAuthHandler(authService, cfg.Server.AppURL),
		User:        NewUserHandler(userService, quotaService),
		Post:        NewPostHandler(postService, authService),
		Billing:     NewBillingHandler(billingService),
	}

	cleanup := func() {
		closeRedis()
		testutil.CleanupTestDB(t, db)
	}

	return ctx, cleanup
}

// saveCredential 为用户写入一个未过期的 Twitter 凭证
func (tc *testContext) saveCredential(t *testing.T, userID int64) {
	t.Helper()
	err := tc.Credentials.Save(context.Background(), userID, &oauth2.Token{
		AccessToken:  "user-access-token",
		RefreshToken: "user-refresh-token",
		TokenType:    "bearer",
		Expiry:       time.Now().Add(time.Hour),
	})
	require.NoError(t, err)
}

// mockAuth 模拟认证中间件
func mockAuth(userID int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.UserIDKey, userID)
		c.Next()
	}
}

func performRequest(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func parseResponse(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	var resp response.Response
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	return resp
}
