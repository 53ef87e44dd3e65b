package logger

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	gormlogger "gorm.io/gorm/logger"
)

// GormLoggerConfig configures the GORM zap logger.
type GormLoggerConfig struct {
	Level         gormlogger.LogLevel
	SlowThreshold time.Duration
	// Expected reports errors the repositories translate into domain
	// outcomes, such as a unique violation on the open-subscription index.
	// They are logged at warn instead of error.
	Expected func(error) bool
}

func DefaultGormLoggerConfig() GormLoggerConfig {
	return GormLoggerConfig{
		Level:         gormlogger.Warn,
		SlowThreshold: 200 * time.Millisecond,
	}
}

// GormLogger implements gormlogger.Interface on top of zap. Bound SQL
// parameters are never logged: they carry emails and provider ids.
type GormLogger struct {
	base          *zap.Logger
	level         gormlogger.LogLevel
	slowThreshold time.Duration
	expected      func(error) bool
}

func NewGormLogger(base *zap.Logger, cfg GormLoggerConfig) *GormLogger {
	if base == nil {
		base = zap.NewNop()
	}
	expected := cfg.Expected
	if expected == nil {
		expected = func(error) bool { return false }
	}
	return &GormLogger{
		base:          base.Named("db"),
		level:         cfg.Level,
		slowThreshold: cfg.SlowThreshold,
		expected:      expected,
	}
}

func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= gormlogger.Info {
		l.logger(ctx).Sugar().Infof(msg, data...)
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= gormlogger.Warn {
		l.logger(ctx).Sugar().Warnf(msg, data...)
	}
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= gormlogger.Error {
		l.logger(ctx).Sugar().Errorf(msg, data...)
	}
}

func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	switch {
	case err != nil && errors.Is(err, gormlogger.ErrRecordNotFound):
		// repositories return nil rows for misses
	case err != nil && l.expected(err):
		if l.level >= gormlogger.Warn {
			l.logQuery(ctx, fc, elapsed, err, zapcore.WarnLevel)
		}
	case err != nil:
		if l.level >= gormlogger.Error {
			l.logQuery(ctx, fc, elapsed, err, zapcore.ErrorLevel)
		}
	case l.slowThreshold > 0 && elapsed > l.slowThreshold && l.level >= gormlogger.Warn:
		l.logQuery(ctx, fc, elapsed, nil, zapcore.WarnLevel)
	case l.level >= gormlogger.Info:
		l.logQuery(ctx, fc, elapsed, nil, zapcore.DebugLevel)
	}
}

func (l *GormLogger) ParamsFilter(_ context.Context, sql string, _ ...interface{}) (string, []interface{}) {
	return sql, nil
}

func (l *GormLogger) logger(ctx context.Context) *zap.Logger {
	return WithContext(ctx, l.base)
}

func (l *GormLogger) logQuery(ctx context.Context, fc func() (string, int64), elapsed time.Duration, err error, level zapcore.Level) {
	sql, rows := fc()
	fields := []zap.Field{
		zap.String("operation", operationFromSQL(sql)),
		zap.String("table", tableFromSQL(sql)),
		zap.Int64("duration_ms", elapsed.Milliseconds()),
		zap.String("sql", strings.TrimSpace(sql)),
	}
	if rows >= 0 {
		fields = append(fields, zap.Int64("rows_affected", rows))
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}

	msg := "db.query"
	if err == nil && level == zapcore.WarnLevel {
		msg = "db.query.slow"
	}
	if ce := l.logger(ctx).Check(level, msg); ce != nil {
		ce.Write(fields...)
	}
}

// operationFromSQL classifies a statement. Row-locking reads are reported
// separately since they serialize the engine's per-user writes.
func operationFromSQL(sql string) string {
	normalized := strings.ToUpper(strings.TrimSpace(sql))
	for _, token := range strings.Fields(normalized) {
		token = strings.Trim(token, "();")
		switch token {
		case "SELECT":
			if strings.HasSuffix(strings.TrimRight(normalized, "; "), "FOR UPDATE") {
				return "SELECT_FOR_UPDATE"
			}
			return token
		case "INSERT", "UPDATE", "DELETE":
			return token
		case "WITH":
			continue
		}
	}
	return "UNKNOWN"
}

var tablePattern = regexp.MustCompile(`(?i)\b(?:from|into|update|join)\s+["` + "`" + `]?([a-z_][a-z0-9_]*)`)

func tableFromSQL(sql string) string {
	m := tablePattern.FindStringSubmatch(sql)
	if len(m) < 2 {
		return ""
	}
	return strings.ToLower(m[1])
}

var _ gormlogger.Interface = (*GormLogger)(nil)
