// Package logging builds the process zap logger and logs oops errors with their context.
package logging

import (
	"os"
	"strings"

	"github.com/samber/oops"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	Level string
	Dev   bool
}

func levelFromString(l string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(l)) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// New initializes and returns a *zap.Logger. Dev uses zap's development config; otherwise JSON
// to stdout with ISO8601 time, caller and stacktraces at error.
func New(cfg Config) (*zap.Logger, error) {
	lvl := levelFromString(cfg.Level)
	if cfg.Dev {
		c := zap.NewDevelopmentConfig()
		c.Level = zap.NewAtomicLevelAt(lvl)
		return c.Build()
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(os.Stdout), lvl)
	opts := []zap.Option{zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)}
	return zap.New(core, opts...), nil
}

// LogError logs err at error level. For oops errors the code, domain and context are added
// as fields; for standard errors only the error string.
func LogError(logger *zap.Logger, msg string, err error, fields ...zap.Field) {
	if oopsErr, ok := oops.AsOops(err); ok {
		fields = append(fields, zap.String("error", oopsErr.Error()))
		if code := oopsErr.Code(); code != nil && code != "" {
			fields = append(fields, zap.Any("code", code))
		}
		if domain := oopsErr.Domain(); domain != "" {
			fields = append(fields, zap.String("domain", domain))
		}
		if ctx := oopsErr.Context(); len(ctx) > 0 {
			fields = append(fields, zap.Any("context", ctx))
		}
		logger.Error(msg, fields...)
		return
	}
	logger.Error(msg, append(fields, zap.Error(err))...)
}
