package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"dirsweep/internal/config"
)

// New creates a logger writing to stdout only
func New() *logrus.Logger {
	return NewWithConfig(nil)
}

// NewWithConfig creates a logger from the logging section of cfg. When a log
// file is configured it is rotated by age and written alongside stdout.
// LOG_LEVEL overrides the configured level.
func NewWithConfig(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339Nano})

	level := "info"
	var lc config.LoggingCfg
	if cfg != nil {
		lc = cfg.Logging
		if lc.Level != "" {
			level = lc.Level
		}
	}
	if env := os.Getenv("LOG_LEVEL"); env != "" {
		level = env
	}
	if parsed, err := logrus.ParseLevel(level); err == nil {
		logger.SetLevel(parsed)
	} else {
		logger.WithField("level", level).Warn("unknown log level, using info")
	}

	if lc.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	}

	if lc.File == "" {
		return logger
	}

	if err := os.MkdirAll(filepath.Dir(lc.File), 0o755); err != nil {
		logger.WithError(err).Warnf("failed to ensure log directory for %s", lc.File)
		return logger
	}

	rotateDays := 30
	if lc.RotationDays > 0 {
		rotateDays = lc.RotationDays
	}
	rotateLogsIfNeeded(logger, lc.File, rotateDays)

	f, err := os.OpenFile(lc.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		logger.WithError(err).Warnf("failed to open log file %s", lc.File)
		return logger
	}

	logger.SetOutput(io.MultiWriter(os.Stdout, f))
	return logger
}

// rotateLogsIfNeeded renames the log file once it is older than rotationDays
func rotateLogsIfNeeded(logger *logrus.Logger, logPath string, rotationDays int) {
	info, err := os.Stat(logPath)
	if err != nil {
		return
	}

	cutoffTime := time.Now().AddDate(0, 0, -rotationDays)
	if info.ModTime().Before(cutoffTime) {
		timestamp := info.ModTime().Format("20060102-150405")
		rotatedPath := logPath + "." + timestamp

		if err := os.Rename(logPath, rotatedPath); err != nil {
			logger.WithError(err).Warn("failed to rotate log file")
			return
		}

		cleanupOldLogs(logger, logPath, rotationDays)
	}
}

// cleanupOldLogs removes rotated log files older than rotationDays
func cleanupOldLogs(logger *logrus.Logger, logPath string, rotationDays int) {
	logDir := filepath.Dir(logPath)
	prefix := filepath.Base(logPath) + "."

	entries, err := os.ReadDir(logDir)
	if err != nil {
		return
	}

	cutoffTime := time.Now().AddDate(0, 0, -rotationDays)

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		if info.ModTime().Before(cutoffTime) {
			fullPath := filepath.Join(logDir, entry.Name())
			if err := os.Remove(fullPath); err != nil {
				logger.WithError(err).Warnf("failed to remove old log file %s", fullPath)
			}
		}
	}
}
