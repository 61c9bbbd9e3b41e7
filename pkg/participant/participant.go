// Package participant defers cache writes until a transaction commits.
//
// A Participant joins one transaction as a two-phase-commit participant.
// Mutations recorded while the transaction is active are queued, flushed to
// the store as a single batch when the coordinator finishes the commit, and
// dropped when it aborts.
//
// In strict mode (the default) cache failures fail the transaction: the vote
// probes the store and a failed flush is returned to the coordinator. In
// non-strict mode the vote never probes and a failed flush is only logged,
// leaving the cache stale but the transaction committed.
package participant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mirkobrombin/go-cachetx/pkg/journal"
	"github.com/mirkobrombin/go-cachetx/pkg/mutation"
	"github.com/mirkobrombin/go-cachetx/pkg/store"
	"github.com/mirkobrombin/go-cachetx/pkg/tx"
	"github.com/mirkobrombin/go-foundation/pkg/options"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// MsgStoreDown is logged whenever a flush does not reach the store.
const MsgStoreDown = "cache store is down"

// ErrInvalidState is returned when an operation arrives in the wrong protocol state.
var ErrInvalidState = errors.New("participant: invalid state")

// State is the protocol state of a Participant.
type State int

const (
	Active   State = iota // accepting mutations
	Voting                // voted yes, waiting for finish or abort
	Finished              // batch flushed
	Failed                // flush attempted and failed
	Aborted               // mutations discarded
)

func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case Voting:
		return "voting"
	case Finished:
		return "finished"
	case Failed:
		return "failed"
	case Aborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var sequence atomic.Uint64

// Participant queues cache mutations for one transaction.
// It is driven by a single coordinator and is not safe for concurrent use.
type Participant struct {
	client   store.Client
	strict   bool
	queue    mutation.Queue
	recorder *mutation.Recorder
	state    State
	sortKey  string

	logger  *zap.Logger
	journal *journal.Journal
	publish func(ctx context.Context, key string) error
	meter   metric.Meter
	tracer  trace.Tracer
	metrics instruments
}

// New returns a strict Participant in the Active state.
func New(client store.Client, opts ...Option) *Participant {
	p := &Participant{
		client:  client,
		strict:  true,
		sortKey: fmt.Sprintf("~~cachetx:%020d", sequence.Inc()),
		logger:  zap.NewNop(),
		meter:   metricnoop.NewMeterProvider().Meter(""),
		tracer:  tracenoop.NewTracerProvider().Tracer(""),
	}
	options.Apply(p, opts...)

	p.recorder = mutation.NewRecorder(client, &p.queue)
	p.metrics = newInstruments(p.meter)
	p.logger = p.logger.With(zap.String("sort_key", p.sortKey), zap.Bool("strict", p.strict))
	return p
}

// Strict reports whether cache failures fail the transaction.
func (p *Participant) Strict() bool {
	return p.strict
}

// State returns the current protocol state.
func (p *Participant) State() State {
	return p.state
}

// Pending returns a copy of the queued mutations.
func (p *Participant) Pending() []mutation.Mutation {
	return p.queue.All()
}

// Reset empties the queue and returns the participant to Active so it can
// join another transaction.
func (p *Participant) Reset() {
	p.queue.Reset()
	p.state = Active
}

// RecordSet queues value under key.
func (p *Participant) RecordSet(key string, value []byte) error {
	if p.state != Active {
		return p.invalid("record set")
	}
	if err := p.recorder.RecordSet(key, value); err != nil {
		return err
	}
	p.metrics.recorded.Add(context.Background(), 1)
	return nil
}

// RecordDelete queues the removal of key.
func (p *Participant) RecordDelete(key string) error {
	if p.state != Active {
		return p.invalid("record delete")
	}
	if err := p.recorder.RecordDelete(key); err != nil {
		return err
	}
	p.metrics.recorded.Add(context.Background(), 1)
	return nil
}

// SortKey orders participants within a commit.
func (p *Participant) SortKey() string {
	return p.sortKey
}

// Begin joins txn. Joining a nested transaction panics with tx.ErrNestedTransaction.
func (p *Participant) Begin(ctx context.Context, txn tx.Transaction) error {
	if txn.Nested() {
		panic(tx.ErrNestedTransaction)
	}
	if p.state != Active {
		return p.invalid("begin")
	}
	return nil
}

// Vote probes the store in strict mode. A failed vote leaves the participant
// Active and should make the coordinator abort the whole transaction.
func (p *Participant) Vote(ctx context.Context, txn tx.Transaction) error {
	if p.state != Active {
		return p.invalid("vote")
	}
	if !p.strict {
		p.state = Voting
		return nil
	}

	ctx, span := p.tracer.Start(ctx, "cachetx.vote", trace.WithAttributes(attribute.String("txn", txn.ID())))
	defer span.End()

	alive, err := p.client.IsAlive(ctx)
	if err == nil && !alive {
		err = store.ErrUnavailable
	}
	if err != nil {
		p.metrics.voteFailures.Add(ctx, 1)
		span.RecordError(err)
		span.SetStatus(codes.Error, "liveness probe failed")
		p.logger.Warn("cache store failed liveness probe", zap.String("txn", txn.ID()), zap.Error(err))
		return fmt.Errorf("participant: vote: %w", err)
	}

	p.state = Voting
	return nil
}

// Finish flushes the queued mutations as one batch. The queue is empty
// afterwards whatever the outcome. A failure is logged and, in strict mode
// only, returned unchanged.
func (p *Participant) Finish(ctx context.Context, txn tx.Transaction) error {
	if p.state != Voting {
		return p.invalid("finish")
	}
	pending := p.queue.Drain()

	ctx, span := p.tracer.Start(ctx, "cachetx.finish", trace.WithAttributes(
		attribute.String("txn", txn.ID()),
		attribute.Int("mutations", len(pending)),
	))
	defer span.End()

	start := time.Now()
	err := p.flush(ctx, pending)
	p.metrics.flushDuration.Record(ctx, float64(time.Since(start).Microseconds())/1000)

	if err == nil {
		p.state = Finished
		p.metrics.flushes.Add(ctx, 1, outcomeOK)
		p.broadcast(ctx, pending)
		return nil
	}

	p.state = Failed
	p.metrics.flushes.Add(ctx, 1, outcomeFailed)
	span.RecordError(err)
	span.SetStatus(codes.Error, MsgStoreDown)
	p.logger.Error(MsgStoreDown,
		zap.String("txn", txn.ID()),
		zap.Int("mutations", len(pending)),
		zap.Error(err),
	)
	p.recordFailure(txn, pending, err)

	if p.strict {
		return err
	}
	return nil
}

func (p *Participant) flush(ctx context.Context, pending []mutation.Mutation) error {
	batch, err := p.client.Begin(ctx)
	if err != nil {
		return err
	}
	for _, m := range pending {
		if err := apply(ctx, batch, m); err != nil {
			return err
		}
	}
	return batch.Execute(ctx)
}

func apply(ctx context.Context, b store.Batch, m mutation.Mutation) error {
	switch m.Kind {
	case mutation.KindSet:
		return b.Set(ctx, m.Key, m.Value)
	case mutation.KindDelete:
		return b.Delete(ctx, m.Key)
	default:
		return fmt.Errorf("participant: unknown mutation %s", m.Kind)
	}
}

func (p *Participant) recordFailure(txn tx.Transaction, pending []mutation.Mutation, cause error) {
	if p.journal == nil {
		return
	}
	_, err := p.journal.Append(journal.Record{
		TxID:      txn.ID(),
		Strict:    p.strict,
		Reason:    cause.Error(),
		At:        time.Now(),
		Mutations: pending,
	})
	if err != nil {
		p.logger.Warn("failed to journal flush failure", zap.String("txn", txn.ID()), zap.Error(err))
	}
}

// Abort drops the queued mutations without touching the store.
func (p *Participant) Abort(ctx context.Context, txn tx.Transaction) {
	p.queue.Reset()
	if p.state == Active || p.state == Voting {
		p.state = Aborted
		p.metrics.aborts.Add(ctx, 1)
	}
}

// BeginSub panics: sub-transactions are not supported.
func (p *Participant) BeginSub(txn tx.Transaction) {
	panic(tx.ErrNestedTransaction)
}

// CommitSub panics: sub-transactions are not supported.
func (p *Participant) CommitSub(txn tx.Transaction) {
	panic(tx.ErrNestedTransaction)
}

// AbortSub panics: sub-transactions are not supported.
func (p *Participant) AbortSub(txn tx.Transaction) {
	panic(tx.ErrNestedTransaction)
}

func (p *Participant) BeforeCompletion(txn tx.Transaction) {}

func (p *Participant) AfterCompletion(txn tx.Transaction) {}

func (p *Participant) invalid(op string) error {
	return fmt.Errorf("%w: %s while %s", ErrInvalidState, op, p.state)
}

var _ tx.Participant = (*Participant)(nil)
