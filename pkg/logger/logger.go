package logger

import (
	"go.uber.org/zap"
)

// NewLogger builds a zap logger appropriate for the environment: structured
// JSON in prod, console output otherwise.
func NewLogger(environment string) (*zap.Logger, error) {
	switch environment {
	case "prod":
		return zap.NewProduction()
	case "test":
		return zap.NewExample(), nil
	default:
		return zap.NewDevelopment()
	}
}

// MustNewLogger panics when the logger cannot be constructed.
func MustNewLogger(environment string) *zap.Logger {
	return zap.Must(NewLogger(environment))
}
