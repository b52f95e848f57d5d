// Package config centralizes the env-var lookups every service in this
// codebase inlines ad hoc (task_executor.go's getEnvDefault, scheduler.go's
// direct os.Getenv calls). Nothing here is exotic: plain strconv parsing
// with a default on missing/invalid input.
package config

import (
	"os"
	"strconv"
	"time"
)

// String returns the environment variable's value, or def if unset.
func String(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Int returns the environment variable parsed as an int, or def if unset
// or unparsable.
func Int(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// Duration returns the environment variable parsed with time.ParseDuration,
// or def if unset or unparsable.
func Duration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// Bool returns the environment variable parsed as a bool, or def if unset
// or unparsable.
func Bool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// Config holds the tunables for the per-frame scheduler demo daemon. The
// framegraphctl CLI does not read it; it takes its settings from flags.
type Config struct {
	WorkerCount      int
	ArenaCapacity    int
	FrameInterval    time.Duration
	FrameStatsPath   string
	FrameStatsWindow int
	NATSUrl          string
	NATSSubject      string
	HTTPAddr         string
	TickRatePerSec   float64
	TickBurst        int
}

// FromEnv loads the demo's configuration from the environment.
func FromEnv() Config {
	return Config{
		WorkerCount:      Int("FRAMEGRAPH_WORKERS", 0),
		ArenaCapacity:    Int("FRAMEGRAPH_ARENA_BYTES", 1<<20),
		FrameInterval:    Duration("FRAMEGRAPH_FRAME_INTERVAL", 16*time.Millisecond),
		FrameStatsPath:   String("FRAMEGRAPH_STATS_DIR", "./data"),
		FrameStatsWindow: Int("FRAMEGRAPH_STATS_WINDOW", 600),
		NATSUrl:          String("FRAMEGRAPH_NATS_URL", ""),
		NATSSubject:      String("FRAMEGRAPH_NATS_SUBJECT", "framegraph.tick"),
		HTTPAddr:         String("FRAMEGRAPH_HTTP_ADDR", ":8090"),
		TickRatePerSec:   float64(Int("FRAMEGRAPH_TICK_RATE", 120)),
		TickBurst:        Int("FRAMEGRAPH_TICK_BURST", 8),
	}
}
