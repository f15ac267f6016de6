package util

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the process-wide structured logger: JSON output at
// info level with an ISO8601 timestamp, matching the chain-adjacent
// peers in the pack (uhyunpark-hyperlicked's pkg/util.NewLogger) rather
// than the teacher's plain log.Printf, since the Executor and
// Reputation Engine need audit trails greppable per phase and per
// intent id.
func NewLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}
