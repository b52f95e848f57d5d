// Package telemetry wires the scheduler's ambient logging, tracing and
// metrics: a global slog logger initialized once, and global OpenTelemetry
// tracer and meter providers. The scheduler core packages take no tracer or
// meter; the demo daemon records the instruments around each frame.
package telemetry

import (
	"log/slog"
	"os"
	"strings"
)

// InitLogging configures the global slog logger. JSON if
// FRAMEGRAPH_JSON_LOG=1/true, text otherwise.
func InitLogging(component string) *slog.Logger {
	mode := strings.ToLower(os.Getenv("FRAMEGRAPH_JSON_LOG"))
	var handler slog.Handler
	opts := &slog.HandlerOptions{AddSource: false, Level: levelFromEnv()}
	if mode == "1" || mode == "true" || mode == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler).With("component", component)
	slog.SetDefault(logger)
	logger.Info("logging initialized", "json", mode == "1" || mode == "true" || mode == "json")
	return logger
}

func levelFromEnv() slog.Leveler {
	switch strings.ToLower(os.Getenv("FRAMEGRAPH_LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
