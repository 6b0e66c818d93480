package logging

import (
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/vela-games/lfsserver/config"
)

// NewLogger returns the process logger configured from cfg.
func NewLogger(cfg *config.Config) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Prefix:          "lfsserver",
	})

	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	if cfg.DebugMode {
		logger.SetLevel(log.DebugLevel)
		logger.SetReportCaller(true)
	}

	switch strings.ToLower(cfg.LogFormat) {
	case "json":
		logger.SetFormatter(log.JSONFormatter)
	case "logfmt":
		logger.SetFormatter(log.LogfmtFormatter)
	default:
		logger.SetFormatter(log.TextFormatter)
	}

	log.SetDefault(logger)

	return logger
}
