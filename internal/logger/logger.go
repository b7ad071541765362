// Package logger は zap のロガーを組み立てます。
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New はレベルとフォーマットからロガーを作成します。
// format が "json" なら本番用、それ以外は開発用の設定を使います。
func New(levelStr, format string) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	switch levelStr {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	}

	var cfg zap.Config
	if format == "json" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	return cfg.Build()
}

// OrNop は nil の場合に何も出力しないロガーを返します。
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
