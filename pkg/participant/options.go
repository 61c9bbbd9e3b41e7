package participant

import (
	"context"

	"github.com/mirkobrombin/go-cachetx/pkg/journal"
	"github.com/mirkobrombin/go-foundation/pkg/options"
	"github.com/mirkobrombin/go-warp/v1/syncbus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Option defines a functional configuration for the Participant.
type Option = options.Option[Participant]

// WithStrict makes cache failures fail the enclosing transaction.
// Participants are strict unless told otherwise.
func WithStrict(strict bool) Option {
	return func(p *Participant) {
		p.strict = strict
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(p *Participant) {
		p.logger = l
	}
}

// WithJournal records every failed flush in j.
func WithJournal(j *journal.Journal) Option {
	return func(p *Participant) {
		p.journal = j
	}
}

// WithBus publishes the keys of every successful flush on bus.
func WithBus(bus syncbus.Bus) Option {
	return func(p *Participant) {
		p.publish = func(ctx context.Context, key string) error {
			return bus.Publish(ctx, key)
		}
	}
}

// WithMeter records participant metrics on m.
func WithMeter(m metric.Meter) Option {
	return func(p *Participant) {
		p.meter = m
	}
}

// WithTracer traces vote and finish with t.
func WithTracer(t trace.Tracer) Option {
	return func(p *Participant) {
		p.tracer = t
	}
}
