package storage

import (
	"context"
	"time"

	gormlogger "gorm.io/gorm/logger"

	"pdfrouter/internal/logger"
)

// GormLogger 将 GORM 日志桥接到统一日志接口
type GormLogger struct {
	log      logger.Logger
	LogLevel gormlogger.LogLevel
}

// NewGormLogger 创建新的 GormLogger 实例
func NewGormLogger(l logger.Logger) *GormLogger {
	if l == nil {
		l = logger.NewNop()
	}
	return &GormLogger{
		log:      l,
		LogLevel: gormlogger.Warn,
	}
}

// LogMode 设置日志级别
func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	newLogger := *l
	newLogger.LogLevel = level
	return &newLogger
}

// Info 打印 info 级别日志
func (l *GormLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.LogLevel >= gormlogger.Info {
		l.log.Info(msg, "data", data)
	}
}

// Warn 打印 warn 级别日志
func (l *GormLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.LogLevel >= gormlogger.Warn {
		l.log.Warn(msg, "data", data)
	}
}

// Error 打印 error 级别日志
func (l *GormLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.LogLevel >= gormlogger.Error {
		l.log.Err(nil, msg, "data", data)
	}
}

// Trace 打印 SQL 日志
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.LogLevel <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()
	fields := []any{
		"sql", sql,
		"rows", rows,
		"timeMs", float64(elapsed.Nanoseconds()) / 1e6,
	}

	switch {
	case err != nil && l.LogLevel >= gormlogger.Error:
		l.log.Err(err, "SQL执行错误", fields...)
	case elapsed > time.Second && l.LogLevel >= gormlogger.Warn:
		l.log.Warn("慢SQL查询", append(fields, "threshold", "1s")...)
	case l.LogLevel == gormlogger.Info:
		l.log.Debug("SQL执行", fields...)
	}
}
