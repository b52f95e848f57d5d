// Package ratelimit throttles the daemon's inbound frame-trigger surfaces
// (the HTTP tick endpoint and the NATS trigger subscription) so an external
// caller cannot drive the frame cadence faster than configured. Adapted
// from `libs/go/core/resilience/hybrid_ratelimiter.go`'s token-bucket /
// leaky-bucket hybrid, renamed into this domain and wired to the scheduler
// error taxonomy instead of reusing a stdlib sentinel for denial.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/intrinsicD/IntrinsicEngine-sub007/internal/ferrors"
)

// Limiter combines a token bucket (tolerates bursts up to capacity) with a
// leaky bucket (smooths sustained load to a fixed rate): Allow checks the
// fast path, Wait queues a caller when the fast path is empty, and a
// background worker drains the queue at leakRate.
type Limiter struct {
	tokenMu    sync.Mutex
	tokens     float64
	capacity   float64
	refillRate float64 // tokens per second
	lastRefill time.Time

	queue    chan *waiter
	leakRate time.Duration
	stopCh   chan struct{}
	workers  sync.WaitGroup

	allowed metric.Int64Counter
	denied  metric.Int64Counter
	queued  metric.Int64Counter
	tokensG metric.Float64Gauge
	queueG  metric.Int64Gauge
}

type waiter struct {
	done chan struct{}
}

// ErrLimitExceeded is returned by Wait when the backlog queue is full.
var ErrLimitExceeded = ferrors.New(ferrors.InvalidArgument, "ratelimit.Wait")

// New constructs a running Limiter: burstCapacity tokens available
// immediately, refilling at refillRate tokens/second; up to queueSize
// callers may wait in the backlog, drained one per leakRate tick.
func New(burstCapacity int, refillRate float64, queueSize int, leakRate time.Duration) *Limiter {
	meter := otel.GetMeterProvider().Meter("framegraphd-ratelimit")

	allowed, _ := meter.Int64Counter("framegraph_ratelimit_allowed_total")
	denied, _ := meter.Int64Counter("framegraph_ratelimit_denied_total")
	queued, _ := meter.Int64Counter("framegraph_ratelimit_queued_total")
	tokensG, _ := meter.Float64Gauge("framegraph_ratelimit_tokens_available")
	queueG, _ := meter.Int64Gauge("framegraph_ratelimit_queue_length")

	l := &Limiter{
		tokens:     float64(burstCapacity),
		capacity:   float64(burstCapacity),
		refillRate: refillRate,
		lastRefill: time.Now(),
		queue:      make(chan *waiter, queueSize),
		leakRate:   leakRate,
		stopCh:     make(chan struct{}),
		allowed:    allowed,
		denied:     denied,
		queued:     queued,
		tokensG:    tokensG,
		queueG:     queueG,
	}

	l.workers.Add(1)
	go l.drainQueue()
	go l.reportMetrics()

	return l
}

// Allow reports whether a request may proceed immediately, consuming a
// token if so.
func (l *Limiter) Allow(ctx context.Context) bool {
	l.refill()

	l.tokenMu.Lock()
	defer l.tokenMu.Unlock()

	if l.tokens >= 1.0 {
		l.tokens -= 1.0
		l.allowed.Add(ctx, 1, metric.WithAttributes(attribute.String("mode", "immediate")))
		return true
	}
	return false
}

// Wait queues the caller in the leaky bucket when Allow would return false,
// blocking until it is admitted, the context is canceled, or the queue is
// full (in which case it returns ErrLimitExceeded immediately).
func (l *Limiter) Wait(ctx context.Context) error {
	w := &waiter{done: make(chan struct{})}

	select {
	case l.queue <- w:
		l.queued.Add(ctx, 1)
		select {
		case <-w.done:
			l.allowed.Add(ctx, 1, metric.WithAttributes(attribute.String("mode", "queued")))
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-l.stopCh:
			return context.Canceled
		}
	default:
		l.denied.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "queue_full")))
		return ErrLimitExceeded
	}
}

// AllowOrWait is the common-case entry point: proceed immediately if a
// token is available, otherwise queue.
func (l *Limiter) AllowOrWait(ctx context.Context) error {
	if l.Allow(ctx) {
		return nil
	}
	return l.Wait(ctx)
}

func (l *Limiter) refill() {
	l.tokenMu.Lock()
	defer l.tokenMu.Unlock()

	now := time.Now()
	elapsed := now.Sub(l.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	l.tokens = minFloat64(l.capacity, l.tokens+elapsed*l.refillRate)
	l.lastRefill = now
}

func (l *Limiter) drainQueue() {
	defer l.workers.Done()

	ticker := time.NewTicker(l.leakRate)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			select {
			case w := <-l.queue:
				close(w.done)
			default:
			}
		case <-l.stopCh:
			return
		}
	}
}

func (l *Limiter) reportMetrics() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx := context.Background()
			l.tokenMu.Lock()
			tokens := l.tokens
			l.tokenMu.Unlock()
			l.tokensG.Record(ctx, tokens)
			l.queueG.Record(ctx, int64(len(l.queue)))
		case <-l.stopCh:
			return
		}
	}
}

// Stop shuts down the background workers. Safe to call once.
func (l *Limiter) Stop() {
	close(l.stopCh)
	l.workers.Wait()
}

func minFloat64(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
