// Package logging builds the venue's structured logger: a zap production
// JSON core with an ISO8601 timestamp key, handed out as a *zap.Logger
// value rather than a package global so every engine and the exchange can
// attach their own name.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a JSON-encoded, ISO8601-timestamped zap.Logger at the given
// level ("debug", "info", "warn", "error"; unrecognized falls back to info).
func New(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(level))
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

func parseLevel(level string) zapcore.Level {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return zap.InfoLevel
	}
	return l
}
