package logger

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	gormlogger "gorm.io/gorm/logger"
)

func New(level string) *zap.SugaredLogger {
	cfg := zap.NewProductionConfig()
	if level == "debug" {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	} else {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	l, err := cfg.Build()
	if err != nil {
		return zap.NewNop().Sugar()
	}
	return l.Sugar()
}

// Gorm routes GORM's query log through zap.
type Gorm struct {
	lg            *zap.SugaredLogger
	level         gormlogger.LogLevel
	slowThreshold time.Duration
}

func NewGorm(lg *zap.SugaredLogger, debug bool) *Gorm {
	level := gormlogger.Warn
	if debug {
		level = gormlogger.Info
	}
	return &Gorm{lg: lg.Named("gorm"), level: level, slowThreshold: 200 * time.Millisecond}
}

func (g *Gorm) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	c := *g
	c.level = level
	return &c
}

func (g *Gorm) Info(_ context.Context, msg string, args ...interface{}) {
	if g.level >= gormlogger.Info {
		g.lg.Infof(msg, args...)
	}
}

func (g *Gorm) Warn(_ context.Context, msg string, args ...interface{}) {
	if g.level >= gormlogger.Warn {
		g.lg.Warnf(msg, args...)
	}
}

func (g *Gorm) Error(_ context.Context, msg string, args ...interface{}) {
	if g.level >= gormlogger.Error {
		g.lg.Errorf(msg, args...)
	}
}

func (g *Gorm) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if g.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	switch {
	case err != nil && !errors.Is(err, gormlogger.ErrRecordNotFound) && g.level >= gormlogger.Error:
		sql, rows := fc()
		g.lg.Errorw("query failed", "error", err, "elapsed", elapsed, "rows", rows, "sql", sql)
	case elapsed > g.slowThreshold && g.level >= gormlogger.Warn:
		sql, rows := fc()
		g.lg.Warnw("slow query", "elapsed", elapsed, "rows", rows, "sql", sql)
	case g.level >= gormlogger.Info:
		sql, rows := fc()
		g.lg.Debugw("query", "elapsed", elapsed, "rows", rows, "sql", sql)
	}
}
