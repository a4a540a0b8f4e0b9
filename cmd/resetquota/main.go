package main

import (
	"context"
	"flag"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/qs3c/scribe_server/config"
	"github.com/qs3c/scribe_server/internal/database"
	"github.com/qs3c/scribe_server/internal/pkg/logger"
	"github.com/qs3c/scribe_server/internal/pkg/metrics"
	"github.com/qs3c/scribe_server/internal/repository"
	"github.com/qs3c/scribe_server/internal/service"
)

var (
	dryRun  = flag.Bool("dry-run", false, "Only report how many profiles would be reset")
	timeout = flag.Duration("timeout", 5*time.Minute, "Maximum time for the sweep")
)

func main() {
	flag.Parse()

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

	// 连接数据库
	db, err := database.New(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	quotaService := service.NewQuotaService(repository.NewProfileRepository(db), cfg, metrics.New(nil))

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	now := time.Now().UTC()
	fields := log.Fields{"month_start": repository.MonthStart(now).Format(time.RFC3339), "dry_run": *dryRun}

	if *dryRun {
		count, err := quotaService.CountStaleCounters(ctx, now)
		if err != nil {
			log.WithFields(fields).Fatalf("Failed to count stale counters: %v", err)
		}
		log.WithFields(fields).WithField("profiles", count).Info("Profiles pending monthly reset (dry run, nothing changed)")
		return
	}

	rows, err := quotaService.ResetStaleCounters(ctx, now)
	if err != nil {
		log.WithFields(fields).Fatalf("Monthly reset failed: %v", err)
	}
	log.WithFields(fields).WithField("profiles", rows).Info("Monthly reset completed")
}
