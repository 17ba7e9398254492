package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the daemon logger and installs it as the zap global. The
// returned level can be changed at runtime.
func NewLogger(dev bool) (*zap.Logger, zap.AtomicLevel, error) {
	config := zap.NewProductionConfig()
	name := "fluxd"
	if dev {
		config = zap.NewDevelopmentConfig()
		name = "fluxd-dev"
	}

	logger, err := config.Build()
	if err != nil {
		return nil, config.Level, err
	}

	logger = logger.Named(name)
	zap.ReplaceGlobals(logger)

	return logger, config.Level, nil
}

func LevelFor(dev bool) zapcore.Level {
	if dev {
		return zapcore.DebugLevel
	}

	return zapcore.InfoLevel
}
