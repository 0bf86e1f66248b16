package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// GO_ENV=dev なら人間向け、それ以外はJSON
func New(env string) (*zap.Logger, error) {
	if env == "dev" {
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return cfg.Build()
	}

	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

// 起動前やテストで使う
func Nop() *zap.Logger {
	return zap.NewNop()
}
