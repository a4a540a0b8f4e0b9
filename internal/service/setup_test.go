package service

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"

	"github.com/qs3c/scribe_server/config"
	"github.com/qs3c/scribe_server/internal/pkg/billing"
	"github.com/qs3c/scribe_server/internal/pkg/credential"
	"github.com/qs3c/scribe_server/internal/pkg/metrics"
	"github.com/qs3c/scribe_server/internal/pkg/oauth"
	"github.com/qs3c/scribe_server/internal/pkg/twitter"
	"github.com/qs3c/scribe_server/internal/repository"
	"github.com/qs3c/scribe_server/internal/testutil"
)

const testWebhookSecret = "whsec_test_secret"

type testEnv struct {
	db          *gorm.DB
	rdb         *redis.Client
	mr          *miniredis.Miniredis
	cfg         *config.Config
	metrics     *metrics.Metrics
	profileRepo *repository.ProfileRepository
	eventRepo   *repository.BillingEventRepository
	twitter     *testutil.FakeTwitter
	stripe      *testutil.FakeStripe
	credentials *credential.Store

	quota   *QuotaService
	post    *PostService
	billing *BillingService
	auth    *AuthService
	users   *UserService
}

func newTestConfig(twitterURL string) *config.Config {
	cfg := &config.Config{
		Server: config.ServerConfig{
			Mode:   "test",
			AppURL: "http://app.test/",
		},
		JWT: config.JWTConfig{
			Secret:      "test-secret-key-for-testing",
			ExpireHours: 24,
		},
		OAuth: config.OAuthConfig{
			Twitter: config.TwitterOAuthConfig{
				ClientID:      "test-client-id",
				ClientSecret:  "test-client-secret",
				RedirectURI:   "http://localhost:8080/api/v1/auth/twitter/callback",
				APIBaseURL:    twitterURL,
				CredentialKey: "test-credential-key",
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
	return cfg
}

func setupServices(t *testing.T) (*testEnv, func()) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	rdb, mr, closeRedis := testutil.SetupTestRedis(t)
	fakeTwitter := testutil.NewFakeTwitter(t)
	fakeStripe := testutil.NewFakeStripe(t)

	cfg := newTestConfig(fakeTwitter.URL())
	m := metrics.New(nil)

	profileRepo := repository.NewProfileRepository(db)
	eventRepo := repository.NewBillingEventRepository(db)
	credentials := credential.NewStore(rdb, cfg.OAuth.Twitter.CredentialKey, 0)
	twitterOAuth := oauth.NewTwitterOAuth(
		cfg.OAuth.Twitter.ClientID,
		cfg.OAuth.Twitter.ClientSecret,
		cfg.OAuth.Twitter.RedirectURI,
		cfg.OAuth.Twitter.APIBaseURL,
	)
	billingClient := billing.NewClient(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret, billing.NewBackends(fakeStripe.URL()))

	quotaService := NewQuotaService(profileRepo, cfg, m)
	env := &testEnv{
		db:          db,
		rdb:         rdb,
		mr:          mr,
		cfg:         cfg,
		metrics:     m,
		profileRepo: profileRepo,
		eventRepo:   eventRepo,
		twitter:     fakeTwitter,
		stripe:      fakeStripe,
		credentials: credentials,
		quota:       quotaService,
		post:        NewPostService(profileRepo, quotaService, twitter.NewClient(fakeTwitter.URL(), cfg.UpstreamTimeout()), rdb, cfg, m),
		billing:     NewBillingService(profileRepo, eventRepo, billingClient, cfg, m),
		auth:        NewAuthService(profileRepo, cfg, twitterOAuth, oauth.NewStateStore(rdb), credentials),
		users:       NewUserService(profileRepo, quotaService),
	}

	cleanup := func() {
		closeRedis()
		testutil.CleanupTestDB(t, db)
	}

	return env, cleanup
}
