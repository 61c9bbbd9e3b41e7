package participant

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	outcomeOK     = metric.WithAttributes(attribute.String("outcome", "ok"))
	outcomeFailed = metric.WithAttributes(attribute.String("outcome", "failed"))
)

type instruments struct {
	recorded      metric.Int64Counter
	flushes       metric.Int64Counter
	voteFailures  metric.Int64Counter
	aborts        metric.Int64Counter
	flushDuration metric.Float64Histogram
}

func newInstruments(m metric.Meter) instruments {
	var (
		ins  instruments
		errs []error
		err  error
	)

	ins.recorded, err = m.Int64Counter("cachetx.mutations.recorded",
		metric.WithDescription("Cache mutations queued by participants."))
	errs = append(errs, err)
	ins.flushes, err = m.Int64Counter("cachetx.flushes",
		metric.WithDescription("Batches flushed to the cache store, by outcome."))
	errs = append(errs, err)
	ins.voteFailures, err = m.Int64Counter("cachetx.votes.failed",
		metric.WithDescription("Votes failed because the cache store was unreachable."))
	errs = append(errs, err)
	ins.aborts, err = m.Int64Counter("cachetx.aborts",
		metric.WithDescription("Participants aborted with their mutations discarded."))
	errs = append(errs, err)
	ins.flushDuration, err = m.Float64Histogram("cachetx.flush.duration",
		metric.WithDescription("Time spent flushing a batch."),
		metric.WithUnit("ms"))
	errs = append(errs, err)

	for _, err := range errs {
		if err != nil {
			otel.Handle(err)
		}
	}
	return ins
}
