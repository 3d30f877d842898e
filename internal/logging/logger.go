package logging

import (
	"go.uber.org/zap"
)

// NewLogger creates a new structured logger
func NewLogger(serviceName string) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.InitialFields = map[string]interface{}{
		"service": serviceName,
	}

	logger, err := config.Build()
	if err != nil {
		return nil, err
	}

	return logger, nil
}

// WithUser returns a logger with a user_id field
func WithUser(logger *zap.Logger, userID string) *zap.Logger {
	return logger.With(zap.String("user_id", userID))
}

// WithVehicle returns a logger with a vehicle_id field
func WithVehicle(logger *zap.Logger, vehicleID string) *zap.Logger {
	return logger.With(zap.String("vehicle_id", vehicleID))
}
