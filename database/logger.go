package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/kbukum/voicememo/logger"
)

var gormLevels = map[string]gormlogger.LogLevel{
	"silent": gormlogger.Silent,
	"error":  gormlogger.Error,
	"warn":   gormlogger.Warn,
	"info":   gormlogger.Info,
}

// queryLog sends GORM output to the service logger. Record-not-found is
// how the task store answers a missing id, so it is never logged.
type queryLog struct {
	log   *logger.Logger
	level gormlogger.LogLevel
	slow  time.Duration
}

func newQueryLog(log *logger.Logger, cfg *Config) *queryLog {
	level, ok := gormLevels[cfg.LogLevel]
	if !ok {
		level = gormlogger.Warn
	}
	return &queryLog{log: log.WithComponent("gorm"), level: level, slow: cfg.SlowQueryThreshold}
}

func (q *queryLog) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	cp := *q
	cp.level = level
	return &cp
}

func (q *queryLog) Info(_ context.Context, msg string, args ...any) {
	if q.level >= gormlogger.Info {
		q.log.Info(fmt.Sprintf(msg, args...))
	}
}

func (q *queryLog) Warn(_ context.Context, msg string, args ...any) {
	if q.level >= gormlogger.Warn {
		q.log.Warn(fmt.Sprintf(msg, args...))
	}
}

func (q *queryLog) Error(_ context.Context, msg string, args ...any) {
	if q.level >= gormlogger.Error {
		q.log.Error(fmt.Sprintf(msg, args...))
	}
}

func (q *queryLog) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if q.level == gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	failed := err != nil && !errors.Is(err, gorm.ErrRecordNotFound)
	slow := q.slow > 0 && elapsed > q.slow
	if !failed && !slow && q.level < gormlogger.Info {
		return
	}

	sql, rows := fc()
	fields := logger.Fields("sql", sql, "rows", rows, logger.FieldDuration, elapsed.String())
	switch {
	case failed && IsBusyError(err):
		fields[logger.FieldError] = err.Error()
		q.log.Warn("database busy", fields)
	case failed:
		fields[logger.FieldError] = err.Error()
		q.log.Error("query failed", fields)
	case slow:
		q.log.Warn("slow query", fields)
	default:
		q.log.Debug("query", fields)
	}
}
