package logging

import (
	"strings"

	"go.uber.org/zap"
)

// NewLogger builds the structured logger used across the service. Mode
// "development" switches to the console encoder for local runs.
func NewLogger(mode string) (*zap.Logger, error) {
	if strings.EqualFold(mode, "development") {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "timestamp"
	return cfg.Build()
}

// WithRequest enriches the logger with the request identifier.
func WithRequest(logger *zap.Logger, requestID string) *zap.Logger {
	if requestID == "" {
		return logger
	}
	return logger.With(zap.String("request_id", requestID))
}

// WithOperation enriches the logger with operation and request identifiers.
func WithOperation(logger *zap.Logger, operation, requestID string) *zap.Logger {
	fields := []zap.Field{zap.String("operation", operation)}
	if requestID != "" {
		fields = append(fields, zap.String("request_id", requestID))
	}
	return logger.With(fields...)
}
