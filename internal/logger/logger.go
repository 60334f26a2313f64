package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Field keys shared by the import service, the scheduler and the HTTP layer.
const (
	KeyService   = "service"
	KeyRequestID = "request_id"
	KeyRunID     = "run_id"
	KeyEntity    = "entity"
	KeyCommand   = "command"
)

// ServiceName tags every line written by NewLogger.
const ServiceName = "docflat"

// NewLogger builds the process logger. prod writes JSON with ISO-8601
// timestamps; local, dev and docker write console output. A non-empty level
// (debug, info, warn, error) replaces the environment default.
//
// Sampling is off in every environment: skipped rows and date failures are
// logged once each and must not be dropped.
func NewLogger(env, level string) (*zap.Logger, error) {
	var cfg zap.Config
	switch env {
	case "prod":
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	case "local", "dev", "docker":
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	default:
		return nil, fmt.Errorf("unknown environment %q for logger", env)
	}
	cfg.Sampling = nil
	cfg.InitialFields = map[string]any{KeyService: ServiceName}

	if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	l, err := cfg.Build(zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return l, nil
}

// Entity tags a line with an entity name.
func Entity(name string) zap.Field { return zap.String(KeyEntity, name) }

// RunID tags a line with an import run id.
func RunID(id string) zap.Field { return zap.String(KeyRunID, id) }

// RunFields identify one import run.
func RunFields(runID, entity, command string) []zap.Field {
	return []zap.Field{RunID(runID), Entity(entity), zap.String(KeyCommand, command)}
}
