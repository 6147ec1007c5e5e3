package logger

import (
	"context"
	"errors"
	"time"

	gormlogger "gorm.io/gorm/logger"
)

// GormLogger implements gorm's logger.Interface on top of slog so SQL traces
// share the request id and the `data` layout of the rest of the logs.
type GormLogger struct {
	logLevel      gormlogger.LogLevel
	slowThreshold time.Duration
}

// NewGormLogger accepts silent, error, warn or info; anything else means warn.
func NewGormLogger(level string, slowThreshold time.Duration) *GormLogger {
	var lvl gormlogger.LogLevel
	switch level {
	case "silent":
		lvl = gormlogger.Silent
	case "error":
		lvl = gormlogger.Error
	case "info":
		lvl = gormlogger.Info
	default:
		lvl = gormlogger.Warn
	}
	return &GormLogger{logLevel: lvl, slowThreshold: slowThreshold}
}

func (g *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	return &GormLogger{logLevel: level, slowThreshold: g.slowThreshold}
}

func (g *GormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if g.logLevel >= gormlogger.Info {
		FromContext(ctx).Info("db info", "detail", msg, "args", data)
	}
}

func (g *GormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if g.logLevel >= gormlogger.Warn {
		FromContext(ctx).Warn("db warn", "detail", msg, "args", data)
	}
}

func (g *GormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if g.logLevel >= gormlogger.Error {
		FromContext(ctx).Error("db error", "detail", msg, "args", data)
	}
}

// Trace logs SQL with rows affected and elapsed time. Missing rows are the
// normal "not found" path for lookups and are not reported as errors.
func (g *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if g.logLevel == gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	sql, rows := fc()

	attrs := []any{
		"sql", sql,
		"rows", rows,
		"elapsed_ms", float64(elapsed.Microseconds()) / 1000.0,
	}

	if err != nil && !errors.Is(err, gormlogger.ErrRecordNotFound) && !errors.Is(err, context.Canceled) {
		if g.logLevel >= gormlogger.Error {
			FromContext(ctx).Error("db query failed", append(attrs, "err", err)...)
		}
		return
	}

	if g.slowThreshold > 0 && elapsed > g.slowThreshold {
		if g.logLevel >= gormlogger.Warn {
			attrs = append(attrs, "threshold_ms", float64(g.slowThreshold.Microseconds())/1000.0)
			FromContext(ctx).Warn("db slow query", attrs...)
		}
		return
	}

	if g.logLevel >= gormlogger.Info {
		FromContext(ctx).Debug("db query", attrs...)
	}
}
