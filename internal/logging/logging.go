// Package logging builds the zap loggers shared by every dbcalm binary.
package logging

import "go.uber.org/zap"

// Build constructs a zap.Logger for the given level string
// ("debug", "info", "warn", "error"). Production config (JSON, sampled) is
// used for everything except "debug", which gets the development config
// (console-friendly, unsampled) for local iteration.
func Build(level string) (*zap.Logger, error) {
	var cfg zap.Config

	switch level {
	case "debug":
		cfg = zap.NewDevelopmentConfig()
	default:
		cfg = zap.NewProductionConfig()
	}

	switch level {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	return cfg.Build()
}
