// Package rnglog wraps zap with the small set of helpers the gateway
// process actually needs: a production/development constructor pair and
// a startup banner, mirroring the shape of a hand-rolled leveled logger
// but backed by structured fields.
package rnglog

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a *zap.Logger. development selects console encoding with
// colored levels and caller info, suited to a terminal; production
// selects JSON encoding suited to log aggregation.
func New(development bool, level string) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.Set(level); err != nil {
		return nil, fmt.Errorf("rnglog: invalid level %q: %w", level, err)
	}

	var cfg zap.Config
	if development {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	return cfg.Build()
}

// Banner logs the startup identity of the gateway once, at Info level,
// with the version and listen address as structured fields rather than
// ASCII art.
func Banner(log *zap.Logger, service, version, addr string) {
	log.Info("starting",
		zap.String("service", service),
		zap.String("version", version),
		zap.String("addr", addr),
	)
}
