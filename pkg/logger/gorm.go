package logger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DefaultSlowThreshold 慢查询阈值
const DefaultSlowThreshold = 200 * time.Millisecond

// GormLogger 把 GORM 日志写成带固定字段的 zap 结构化日志
type GormLogger struct {
	SlowThreshold time.Duration
	LogLevel      gormlogger.LogLevel

	// fields 附加到每条日志，例如表名和运行 ID
	fields []zap.Field
}

// NewGormLogger 创建 GORM 日志适配器，默认只输出告警和错误
func NewGormLogger(fields ...zap.Field) *GormLogger {
	return &GormLogger{
		SlowThreshold: DefaultSlowThreshold,
		LogLevel:      gormlogger.Warn,
		fields:        fields,
	}
}

// LogMode 实现 gormlogger.Interface
func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	copied := *l
	copied.LogLevel = level
	return &copied
}

// Info 实现 gormlogger.Interface
func (l *GormLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.LogLevel >= gormlogger.Info {
		l.logger().Info(fmt.Sprintf(msg, data...), l.fields...)
	}
}

// Warn 实现 gormlogger.Interface
func (l *GormLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.LogLevel >= gormlogger.Warn {
		l.logger().Warn(fmt.Sprintf(msg, data...), l.fields...)
	}
}

// Error 实现 gormlogger.Interface
func (l *GormLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.LogLevel >= gormlogger.Error {
		l.logger().Error(fmt.Sprintf(msg, data...), l.fields...)
	}
}

// Trace 实现 gormlogger.Interface。失败记为 error，慢语句记为 warn，其余在 Info 级别下记为 debug
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.LogLevel <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	failed := err != nil && !errors.Is(err, gorm.ErrRecordNotFound)
	slow := l.SlowThreshold > 0 && elapsed > l.SlowThreshold
	if !failed && !slow && l.LogLevel < gormlogger.Info {
		return
	}

	sql, rows := fc()
	fields := append([]zap.Field{
		zap.String("op", statementKind(sql)),
		zap.Duration("latency", elapsed),
		zap.Int64("rows", rows),
		zap.String("sql", sql),
	}, l.fields...)

	switch {
	case failed:
		l.logger().Error("sql failed", append(fields, zap.Error(err))...)
	case slow:
		l.logger().Warn("slow sql", append(fields, zap.Duration("threshold", l.SlowThreshold))...)
	default:
		l.logger().Debug("sql", fields...)
	}
}

func (l *GormLogger) logger() *zap.Logger {
	return L().WithOptions(zap.WithCaller(false)).Named("gorm")
}

// statementKind 返回语句的首个关键字，小写
func statementKind(sql string) string {
	sql = strings.TrimSpace(sql)
	if i := strings.IndexAny(sql, " \t\n("); i > 0 {
		sql = sql[:i]
	}
	return strings.ToLower(sql)
}
