package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"github.com/qs3c/scribe_server/config"
	"github.com/qs3c/scribe_server/internal/api"
	"github.com/qs3c/scribe_server/internal/api/handler"
	"github.com/qs3c/scribe_server/internal/database"
	"github.com/qs3c/scribe_server/internal/pkg/billing"
	"github.com/qs3c/scribe_server/internal/pkg/credential"
	"github.com/qs3c/scribe_server/internal/pkg/cron"
	"github.com/qs3c/scribe_server/internal/pkg/logger"
	"github.com/qs3c/scribe_server/internal/pkg/metrics"
	"github.com/qs3c/scribe_server/internal/pkg/oauth"
	"github.com/qs3c/scribe_server/internal/pkg/twitter"
	"github.com/qs3c/scribe_server/internal/repository"
	"github.com/qs3c/scribe_server/internal/service"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// 加载配置
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.Setup(cfg.Log)

	// 初始化数据库
	db, err := database.New(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect database: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	log.WithField("driver", cfg.Database.Driver).Info("Database connected")

	// 初始化 Redis
	rdb, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect redis: %v", err)
	}
	log.Info("Redis connected")

	m := metrics.New(prometheus.DefaultRegisterer)

	// 外部客户端
	twitterOAuth := oauth.NewTwitterOAuth(
		cfg.OAuth.Twitter.ClientID,
		cfg.OAuth.Twitter.ClientSecret,
		cfg.OAuth.Twitter.RedirectURI,
		cfg.OAuth.Twitter.APIBaseURL,
	)
	twitterClient := twitter.NewClient(cfg.OAuth.Twitter.APIBaseURL, cfg.UpstreamTimeout())
	billingClient := billing.NewClient(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret, nil)
	credentials := credential.NewStore(rdb, cfg.OAuth.Twitter.CredentialKey, 0)

	// 初始化 Repository
	profileRepo := repository.NewProfileRepository(db)
	eventRepo := repository.NewBillingEventRepository(db)

	// 初始化 Service
	quotaService := service.NewQuotaService(profileRepo, cfg, m)
	authService := service.NewAuthService(profileRepo, cfg, twitterOAuth, oauth.NewStateStore(rdb), credentials)
	userService := service.NewUserService(profileRepo, quotaService)
	postService := service.NewPostService(profileRepo, quotaService, twitterClient, rdb, cfg, m)
	billingService := service.NewBillingService(profileRepo, eventRepo, billingClient, cfg, m)

	// 月度计数清理
	cronService := cron.NewService(quotaService, cfg.Cron.MonthlyResetSpec)
	if err := cronService.Start(); err != nil {
		log.Fatalf("Failed to start cron: %v", err)
	}
	log.WithField("next_run", cronService.NextRun().Format(time.RFC3339)).Info("Monthly quota reset scheduled")

	// 初始化 Handler 和 Router
	router := api.NewRouter(
		handler.NewAuthHandler(authService, cfg.Server.AppURL),
		handler.NewUserHandler(userService, quotaService),
		handler.NewPostHandler(postService, authService),
		handler.NewBillingHandler(billingService),
		cfg,
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.Setup(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof("Server starting on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// 监听退出信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Info("Shutting down gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Server shutdown failed")
	}
	cronService.Stop()

	if err := rdb.Close(); err != nil {
		log.WithError(err).Warn("Failed to close redis")
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}

	log.Info("Server stopped")
}
