package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the zap logger for the given environment. Development gets
// a console encoder plus an app.log file sink; production gets JSON on
// stderr.
func New(environment string) *zap.Logger {
	if environment != "development" {
		logger, err := zap.NewProduction()
		if err != nil {
			logger = zap.NewNop()
		}
		return logger
	}

	encoderCfg := zap.NewDevelopmentEncoderConfig()
	encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(
			zapcore.NewConsoleEncoder(encoderCfg),
			zapcore.Lock(os.Stderr),
			zapcore.DebugLevel,
		),
	}

	f, err := os.OpenFile("app.log", os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err == nil {
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(f),
			zapcore.DebugLevel,
		))
	}

	return zap.New(zapcore.NewTee(cores...))
}
