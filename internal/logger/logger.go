// Package logger builds the zap logger shared by the server, the jobs and invoicectl.
package logger

import (
	"fmt"
	"strings"

	"github.com/zmanup/invoicing-api/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds a logger from configuration. Format "json" or "console" wins;
// otherwise production gets JSON and every other environment a coloured console.
func NewLogger(cfg *config.LoggingConfig, appCfg *config.AppConfig) (*zap.Logger, error) {
	jsonOutput := appCfg.Environment == "production"
	switch strings.ToLower(cfg.Format) {
	case "json":
		jsonOutput = true
	case "console", "text":
		jsonOutput = false
	}

	var zapCfg zap.Config
	if jsonOutput {
		zapCfg = zap.NewProductionConfig()
		zapCfg.EncoderConfig.TimeKey = "timestamp"
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.DisableStacktrace = true
	}
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	level := zapcore.InfoLevel
	if cfg.Level != "" {
		parsed, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		level = parsed
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.InitialFields = map[string]interface{}{
		"service":     appCfg.Name,
		"environment": appCfg.Environment,
	}

	l, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return l, nil
}

// WithRequest scopes a logger to one HTTP request
func WithRequest(l *zap.Logger, method, path, requestID string) *zap.Logger {
	return l.With(
		zap.String("request_id", requestID),
		zap.String("method", method),
		zap.String("path", path),
	)
}

// WithUser adds the acting business owner
func WithUser(l *zap.Logger, userID, role string) *zap.Logger {
	return l.With(zap.String("user_id", userID), zap.String("role", role))
}
