package main

import (
	"github.com/voltwatch/vehicle-telemetry-worker/internal/config"
	"github.com/voltwatch/vehicle-telemetry-worker/internal/logging"
	"go.uber.org/zap"
)

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.NewLogger(cfg.ServiceName)
}
