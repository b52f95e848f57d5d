// Command framegraphd is the demo daemon: it drives a synthetic per-frame
// pass graph on a fixed cadence, exposes its health/introspection surface
// over HTTP, and optionally accepts ad-hoc "tick now" triggers over NATS.
// Its shape (slog + otel init, a cron-driven ticker, a BoltDB-backed
// history store, graceful shutdown on SIGINT/SIGTERM) follows
// `main.go` and `scheduler.go` directly; what changed
// is what gets scheduled each tick (a compiled Frame Graph, not a
// workflow's task DAG).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/intrinsicD/IntrinsicEngine-sub007/internal/config"
	"github.com/intrinsicD/IntrinsicEngine-sub007/internal/framegraph"
	"github.com/intrinsicD/IntrinsicEngine-sub007/internal/framestats"
	"github.com/intrinsicD/IntrinsicEngine-sub007/internal/natsbridge"
	"github.com/intrinsicD/IntrinsicEngine-sub007/internal/ratelimit"
	"github.com/intrinsicD/IntrinsicEngine-sub007/internal/scopealloc"
	"github.com/intrinsicD/IntrinsicEngine-sub007/internal/taskscheduler"
	"github.com/intrinsicD/IntrinsicEngine-sub007/internal/telemetry"
)

// Marker component types read/written by the synthetic demo passes. They
// carry no data: the DAG Scheduler only needs their type identity.
type position struct{}
type velocity struct{}
type transform struct{}

func registerDemoPasses(g *framegraph.Graph) {
	g.AddPass("physics", func(b *framegraph.Builder) {
		framegraph.Write[position](b)
		framegraph.Write[velocity](b)
	}, func() {})

	g.AddPass("animation", func(b *framegraph.Builder) {
		framegraph.Read[velocity](b)
		framegraph.Write[transform](b)
	}, func() {})

	g.AddPass("render-prep", func(b *framegraph.Builder) {
		framegraph.Read[position](b)
		framegraph.Read[transform](b)
		b.Signal("GpuReady")
	}, func() {})

	g.AddPass("audio-mix", func(b *framegraph.Builder) {
		b.WaitFor("GpuReady")
	}, func() {})
}

func main() {
	const service = "framegraphd"

	logger := telemetry.InitLogging(service)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTrace := telemetry.InitTracer(ctx, service)
	shutdownMetrics, metrics := telemetry.InitMetrics(ctx, service)

	cfg := config.FromEnv()

	tasks := taskscheduler.New()
	tasks.Initialize(cfg.WorkerCount)
	defer tasks.Shutdown()

	if err := os.MkdirAll(cfg.FrameStatsPath, 0o755); err != nil {
		logger.Error("create frame stats dir failed", "path", cfg.FrameStatsPath, "err", err)
		os.Exit(1)
	}
	stats, err := framestats.Open(filepath.Join(cfg.FrameStatsPath, "frames.db"), cfg.FrameStatsWindow)
	if err != nil {
		logger.Error("open frame stats store failed", "err", err)
		os.Exit(1)
	}
	defer stats.Close()

	leakInterval := time.Second
	if cfg.TickRatePerSec > 0 {
		leakInterval = time.Duration(float64(time.Second) / cfg.TickRatePerSec)
	}
	limiter := ratelimit.New(cfg.TickBurst, cfg.TickRatePerSec, 64, leakInterval)
	defer limiter.Stop()

	// The Frame Graph and its Scope Allocator are single-owner: both are
	// constructed by the one goroutine that will ever touch them, when it
	// starts, and every external trigger (cron, HTTP, NATS) only signals that
	// goroutine over a channel rather than calling into the graph directly.
	triggerCh := make(chan context.Context, 8)
	var frameSeq uint64
	var latestSnapshot atomic.Value

	go frameWorker(ctx, triggerCh, tasks, cfg, metrics, stats, &frameSeq, &latestSnapshot, logger)

	c := cron.New()
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", cfg.FrameInterval), func() {
		select {
		case triggerCh <- context.Background():
		default:
			logger.Warn("frame trigger dropped: worker busy")
		}
	}); err != nil {
		logger.Error("schedule frame ticker failed", "err", err)
		os.Exit(1)
	}
	c.Start()
	defer c.Stop()

	if cfg.NATSUrl != "" {
		nc, err := natsbridge.Connect(cfg.NATSUrl)
		if err != nil {
			logger.Warn("nats connect failed; external triggers disabled", "err", err)
		} else {
			defer nc.Close()
			_, err := natsbridge.SubscribeTriggers(nc, cfg.NATSSubject, func(tctx context.Context) {
				if err := limiter.AllowOrWait(tctx); err != nil {
					logger.Warn("nats trigger rate-limited", "err", err)
					return
				}
				select {
				case triggerCh <- tctx:
				default:
					logger.Warn("nats-triggered frame dropped: worker busy")
				}
			})
			if err != nil {
				logger.Warn("nats subscribe failed; external triggers disabled", "err", err)
			} else {
				logger.Info("listening for external triggers", "subject", cfg.NATSSubject)
			}
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/v1/frame", func(w http.ResponseWriter, _ *http.Request) {
		v := latestSnapshot.Load()
		if v == nil {
			http.Error(w, "no frame recorded yet", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	})
	mux.HandleFunc("/v1/history", func(w http.ResponseWriter, r *http.Request) {
		records, err := stats.Recent(20)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(records)
	})
	mux.HandleFunc("/v1/tick", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if err := limiter.AllowOrWait(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusTooManyRequests)
			return
		}
		select {
		case triggerCh <- r.Context():
			w.WriteHeader(http.StatusAccepted)
		default:
			http.Error(w, "frame worker busy", http.StatusServiceUnavailable)
		}
	})

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
			cancel()
		}
	}()

	logger.Info("framegraphd started", "addr", cfg.HTTPAddr, "frame_interval", cfg.FrameInterval)
	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	telemetry.Flush(shutdownCtx, shutdownTrace)
	_ = shutdownMetrics(shutdownCtx)
	logger.Info("shutdown complete")
}

// frameWorker is the single owner of the Frame Graph and its Scope
// Allocator: both are constructed here, before the first tick, so their
// thread-affinity matches the goroutine that will exclusively drive them.
func frameWorker(
	ctx context.Context,
	trigger <-chan context.Context,
	tasks *taskscheduler.Scheduler,
	cfg config.Config,
	metrics telemetry.SchedulerMetrics,
	stats *framestats.Store,
	seq *uint64,
	latestSnapshot *atomic.Value,
	logger *slog.Logger,
) {
	arena := scopealloc.NewArena(cfg.ArenaCapacity)
	graph := framegraph.New(tasks, arena, logger)
	tracer := otel.Tracer("framegraphd-frame")

	for {
		select {
		case <-ctx.Done():
			return
		case fctx := <-trigger:
			runFrame(fctx, tracer, graph, arena, metrics, stats, seq, latestSnapshot, logger)
		}
	}
}

func runFrame(
	ctx context.Context,
	tracer trace.Tracer,
	graph *framegraph.Graph,
	arena *scopealloc.Arena,
	metrics telemetry.SchedulerMetrics,
	stats *framestats.Store,
	seq *uint64,
	latestSnapshot *atomic.Value,
	logger *slog.Logger,
) {
	ctx, span := tracer.Start(ctx, "frame.run")
	defer span.End()
	start := time.Now()

	if err := arena.Reset(); err != nil {
		logger.Error("arena reset failed", "err", err)
		return
	}
	graph.Reset()
	registerDemoPasses(graph)

	if err := graph.Compile(); err != nil {
		metrics.CyclesDetected.Add(ctx, 1)
		logger.Error("compile failed", "err", err)
		return
	}

	if err := graph.Execute(); err != nil {
		logger.Error("execute failed", "err", err)
		return
	}

	duration := time.Since(start)
	metrics.PassDuration.Record(ctx, float64(duration.Milliseconds()))
	metrics.FramesCompleted.Add(ctx, 1)
	for _, layer := range graph.ExecutionLayers() {
		metrics.LayerSize.Record(ctx, int64(len(layer)))
	}

	snapshot := graph.Snapshot()
	latestSnapshot.Store(snapshot)

	n := atomic.AddUint64(seq, 1)
	rec := framestats.FrameRecord{
		ID:       uuid.New().String(),
		Seq:      n,
		At:       time.Now(),
		Layers:   snapshot.Layers,
		Duration: duration,
	}
	if err := stats.Record(rec); err != nil {
		logger.Warn("frame history record failed", "err", err)
	}
	logger.Debug("frame complete", "seq", n, "duration", duration)
}
