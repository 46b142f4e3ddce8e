// Package logger builds the engine's diagnostic logger. Diagnostics go to
// stderr only: stdout stays untouched and the result file remains the
// machine interface.
package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a console logger writing to stderr. The level comes from
// SANDBOX_LOG_LEVEL (debug, info, warn, error); unset or invalid means
// warn, keeping the harness-facing stderr quiet by default.
func New() *zap.Logger {
	level := zapcore.WarnLevel
	if raw := os.Getenv("SANDBOX_LOG_LEVEL"); raw != "" {
		if err := level.UnmarshalText([]byte(raw)); err != nil {
			level = zapcore.WarnLevel
		}
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.Lock(os.Stderr),
		level,
	)
	return zap.New(core)
}
