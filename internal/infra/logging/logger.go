package logging

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Constants for log levels that match slog.Level values.
const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// Type aliases for commonly used slog types.
type (
	Logger  = *slog.Logger
	Handler = slog.Handler
	Level   = slog.Level
)

//nolint:gochecknoglobals
var logLevelStrToLevel = map[string]Level{
	"debug":   LevelDebug,
	"info":    LevelInfo,
	"warn":    LevelWarn,
	"warning": LevelWarn,
	"error":   LevelError,
}

// LoggerConfig holds configuration parameters for logging.
type LoggerConfig struct {
	// AppName is the application identifier added to all log entries
	AppName string

	// Output specifies where logs are written ("stdout", "stderr", "discard" or a file path)
	Output string `env:"OUTPUT" default:"stderr"`

	// Level sets the minimum log level ("debug", "info", "warn", "error")
	Level string `env:"LEVEL" default:"info"`

	// Filter overrides the level per logger name prefix ("svc.imagesvc:debug,repo:warn")
	Filter string `env:"FILTER" default:""`

	// JSON enables JSON-formatted output instead of human-readable console output
	JSON bool `env:"JSON" default:"false"`

	// Color controls ANSI colors of console output ("auto", "always", "never")
	Color string `env:"COLOR" default:"auto"`

	// Source adds the calling function and file to every record
	Source bool `env:"SOURCE" default:"true"`

	// OutputHandle, if set, takes precedence over Output
	OutputHandle io.Writer
}

//nolint:gochecknoglobals
var (
	Group = slog.Group

	config     LoggerConfig
	configLock sync.Mutex
)

// Configure sets up global logging configuration for the application.
// Loggers obtained before the call keep their previous configuration.
func Configure(ctx context.Context, cfg LoggerConfig, appName string) {
	cfg = configure(cfg, appName)

	GetLogger("infra.logging").With(Group("config",
		"appName", cfg.AppName,
		"output", cfg.Output,
		"level", cfg.Level,
		"filter", cfg.Filter,
		"json", cfg.JSON,
	)).DebugContext(ctx, "logging configured")
}

func configure(cfg LoggerConfig, appName string) LoggerConfig {
	cfg.AppName = appName

	if cfg.OutputHandle == nil {
		switch cfg.Output {
		case "", "discard":
			cfg.OutputHandle = io.Discard
		case "stdout":
			cfg.OutputHandle = os.Stdout
		case "stderr":
			cfg.OutputHandle = os.Stderr
		default:
			file, err := os.OpenFile(cfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
			if err != nil {
				panic(fmt.Errorf("failed to open log file: %w", err))
			}

			cfg.OutputHandle = file
		}
	}

	configLock.Lock()
	config = cfg
	configLock.Unlock()

	slog.SetLogLoggerLevel(parseLogLevel(cfg.Level, LevelInfo))

	return cfg
}

func snapshot() LoggerConfig {
	configLock.Lock()
	defer configLock.Unlock()

	return config
}

// GetLogLogger creates a standard library *log.Logger that writes through a slog.Logger.
// Useful for adapting third-party code that expects a *log.Logger.
func GetLogLogger(logger Logger, level Level) *log.Logger {
	handler := logger.With("stdlog", true).Handler()

	return slog.NewLogLogger(handler, level)
}

// GetLogger creates a new logger with the given name using the global configuration.
// The name is included in log entries as the "logger" attribute and selects Filter overrides.
func GetLogger(name string) Logger {
	cfg := snapshot()

	if cfg.OutputHandle == nil || cfg.OutputHandle == io.Discard {
		return NewNopLogger()
	}

	logger := slog.New(NewTracingHandler(newHandler(cfg)))

	if cfg.AppName != "" {
		logger = logger.With("app", cfg.AppName)
	}

	return logger.With("logger", name)
}

func newHandler(cfg LoggerConfig) slog.Handler {
	level := new(slog.LevelVar)
	level.Set(parseLogLevel(cfg.Level, LevelInfo))

	if cfg.JSON {
		//nolint:exhaustruct
		return slog.NewJSONHandler(cfg.OutputHandle, &slog.HandlerOptions{
			AddSource: cfg.Source,
			Level:     level,
		})
	}

	handler := NewConsoleHandler(cfg.OutputHandle, level, cfg.pkgLevels(), cfg.Color)
	handler.Source = cfg.Source

	return handler
}

func (cfg LoggerConfig) pkgLevels() map[string]slog.Level {
	levels := make(map[string]slog.Level)

	for _, pkgLevel := range strings.Split(cfg.Filter, ",") {
		name, level, ok := strings.Cut(pkgLevel, ":")
		if !ok {
			continue
		}

		levels[strings.TrimSpace(name)] = parseLogLevel(level, LevelDebug)
	}

	return levels
}

func parseLogLevel(levelStr string, fallback Level) Level {
	level, ok := logLevelStrToLevel[strings.ToLower(strings.TrimSpace(levelStr))]
	if !ok {
		return fallback
	}

	return level
}
