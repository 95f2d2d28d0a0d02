package logger

import (
	"github.com/vexa-ai/billing/internal/config"
	"github.com/vexa-ai/billing/internal/types"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap.SugaredLogger to provide logging functionality
type Logger struct {
	*zap.SugaredLogger
}

// Global logger for convenience
var L *Logger

// NewLogger creates and returns a new Logger instance at the configured level
func NewLogger(cfg *config.Configuration) (*Logger, error) {
	zapConfig := zap.NewProductionConfig()
	zapConfig.EncoderConfig.TimeKey = "timestamp"
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapConfig.Level = zap.NewAtomicLevelAt(parseLevel(cfg.Logging.Level))

	if cfg.Deployment.Mode == types.ModeLocal {
		zapConfig.Encoding = "console"
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zapLogger, err := zapConfig.Build()
	if err != nil {
		return nil, err
	}

	return &Logger{
		SugaredLogger: zapLogger.Sugar(),
	}, nil
}

func parseLevel(level types.LogLevel) zapcore.Level {
	parsed, err := zapcore.ParseLevel(string(level))
	if err != nil {
		return zapcore.InfoLevel
	}
	return parsed
}

// Initialize default logger and set it as global while also using Dependency Injection.
// The global is used in scripts and one-off commands where wiring the DI graph is
// overkill; everywhere else the injected instance should be preferred.
func init() {
	L, _ = NewLogger(config.GetDefaultConfig())
}

// GetLogger returns the global logger instance
func GetLogger() *Logger {
	return L
}

// Helper methods to make logging more convenient
func (l *Logger) Debugf(template string, args ...interface{}) {
	l.SugaredLogger.Debugf(template, args...)
}

func (l *Logger) Infof(template string, args ...interface{}) {
	l.SugaredLogger.Infof(template, args...)
}

func (l *Logger) Warnf(template string, args ...interface{}) {
	l.SugaredLogger.Warnf(template, args...)
}

func (l *Logger) Errorf(template string, args ...interface{}) {
	l.SugaredLogger.Errorf(template, args...)
}

func (l *Logger) Fatalf(template string, args ...interface{}) {
	l.SugaredLogger.Fatalf(template, args...)
}
