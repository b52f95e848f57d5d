// Package natsbridge is the external frame-trigger transport: a thin
// wrapper over nats.go that lets something outside the process ask the
// demo daemon to run an ad-hoc frame ("tick now"), propagating trace
// context across the publish/subscribe boundary exactly as
// `libs/go/core/natsctx` does for the orchestrator's event bus.
package natsbridge

import (
	"context"
	"fmt"
	"time"

	nats "github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

var propagator = propagation.TraceContext{}

// Connect dials a NATS server with a short timeout and reconnect handling
// suitable for a long-lived daemon.
func Connect(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats at %q: %w", url, err)
	}
	return nc, nil
}

// PublishTrigger injects the current trace context into the message
// headers and publishes an (empty-payload) tick-now trigger on subject.
func PublishTrigger(ctx context.Context, nc *nats.Conn, subject string) error {
	hdr := nats.Header{}
	propagator.Inject(ctx, propagation.HeaderCarrier(hdr))
	msg := &nats.Msg{Subject: subject, Header: hdr}
	return nc.PublishMsg(msg)
}

// SubscribeTriggers subscribes to subject; each received message extracts
// the inbound trace context, starts a child consumer span, and invokes
// onTrigger with the derived context. The message payload is ignored; the
// mere arrival of a message on this subject is the trigger.
func SubscribeTriggers(nc *nats.Conn, subject string, onTrigger func(context.Context)) (*nats.Subscription, error) {
	return nc.Subscribe(subject, func(m *nats.Msg) {
		carrier := propagation.HeaderCarrier(m.Header)
		ctx := propagator.Extract(context.Background(), carrier)

		tracer := otel.Tracer("framegraphd-nats")
		ctx, span := tracer.Start(ctx, "nats.trigger", trace.WithSpanKind(trace.SpanKindConsumer))
		defer span.End()

		onTrigger(ctx)
	})
}
