package logutil

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"
)

type loggerConfig struct {
	Level     string
	Format    string
	AddSource bool
}

// LoggerFromViper builds the stderr logger. These CLIs default to warn so
// the stdout/stderr output contract stays clean; --trace forces debug.
func LoggerFromViper(v *viper.Viper, out io.Writer) (*slog.Logger, error) {
	logCfg := loggerConfig{
		Level:     v.GetString("logging.level"),
		Format:    v.GetString("logging.format"),
		AddSource: v.GetBool("logging.add_source"),
	}
	if strings.TrimSpace(logCfg.Level) == "" && v.GetBool("trace") {
		logCfg.Level = "debug"
	}
	if out == nil {
		out = os.Stderr
	}
	return newLoggerFromConfig(logCfg, out)
}

func newLoggerFromConfig(cfg loggerConfig, out io.Writer) (*slog.Logger, error) {
	level, err := parseSlogLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.AddSource,
	}

	var h slog.Handler
	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "", "text":
		h = slog.NewTextHandler(out, opts)
	case "json":
		h = slog.NewJSONHandler(out, opts)
	default:
		return nil, fmt.Errorf("unknown logging.format: %s", cfg.Format)
	}

	return slog.New(h), nil
}

func parseSlogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "warn", "warning":
		return slog.LevelWarn, nil
	case "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelWarn, fmt.Errorf("unknown logging.level: %s", s)
	}
}
