package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger struct {
	SugaredLogger *zap.SugaredLogger
	red           *redactor
}

// Options configures New. Mode selects the production (json) or development
// (console) preset; Level overrides the preset level when set.
type Options struct {
	Mode     string `koanf:"mode"`
	Level    string `koanf:"level"`
	Redact   bool   `koanf:"redact"`
	HashSalt string `koanf:"hash_salt"`
}

// New builds a logger with redaction on.
func New(mode string, level ...string) (*Logger, error) {
	opts := Options{Mode: mode, Redact: true}
	if len(level) > 0 {
		opts.Level = level[0]
	}
	return NewWithOptions(opts)
}

func NewWithOptions(opts Options) (*Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(strings.TrimSpace(opts.Mode)) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
	case "test":
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	default:
		cfg = zap.NewDevelopmentConfig()
	}
	if lv := strings.ToLower(strings.TrimSpace(opts.Level)); lv != "" {
		var lvl zapcore.Level
		if err := lvl.UnmarshalText([]byte(lv)); err != nil {
			return nil, fmt.Errorf("parse log level %q: %w", opts.Level, err)
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	zl, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return FromZap(zl, opts), nil
}

// FromZap wraps an existing zap logger.
func FromZap(zl *zap.Logger, opts Options) *Logger {
	return &Logger{
		SugaredLogger: zl.Sugar(),
		red:           &redactor{enabled: opts.Redact, salt: strings.TrimSpace(opts.HashSalt)},
	}
}

// Nop discards everything.
func Nop() *Logger {
	return FromZap(zap.NewNop(), Options{})
}

func (l *Logger) Sync() {
	_ = l.SugaredLogger.Sync()
}

func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Debugw(msg, l.red.kvs(keysAndValues)...)
}

func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Infow(msg, l.red.kvs(keysAndValues)...)
}

func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Warnw(msg, l.red.kvs(keysAndValues)...)
}

func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Errorw(msg, l.red.kvs(keysAndValues)...)
}

func (l *Logger) Fatal(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Fatalw(msg, l.red.kvs(keysAndValues)...)
}

func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger.With(l.red.kvs(keysAndValues)...), red: l.red}
}
