package logger

import (
	"os"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/qs3c/scribe_server/config"
)

// Setup configures the process-wide logrus logger.
func Setup(cfg config.LogConfig) {
	log.SetOutput(os.Stdout)

	switch strings.ToLower(cfg.Format) {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	default:
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		log.WithError(err).Warnf("unknown log level %q, falling back to info", cfg.Level)
		level = log.InfoLevel
	}
	log.SetLevel(level)
}
