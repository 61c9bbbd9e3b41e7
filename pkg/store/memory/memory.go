package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mirkobrombin/go-cachetx/pkg/mutation"
	"github.com/mirkobrombin/go-cachetx/pkg/store"
	"github.com/mirkobrombin/go-foundation/pkg/options"
	"github.com/mirkobrombin/go-warp/v1/cache"
)

var ErrClosed = errors.New("memory: store is closed")

const defaultMaxEntries = 100000

// Option defines a functional configuration for the Store.
type Option = options.Option[Store]

// WithNamespace prefixes every key with ns.
func WithNamespace(ns string) Option {
	return func(s *Store) {
		s.namespace = ns
	}
}

// WithMaxEntries bounds the number of cached values.
func WithMaxEntries(n int) Option {
	return func(s *Store) {
		s.maxEntries = n
	}
}

// WithTTL sets the expiration used by batched sets.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// Store is an in-process store.Client backed by a go-warp cache.
// Batches are applied under the store lock, so readers never observe half of one.
type Store struct {
	mu         sync.RWMutex
	values     *cache.InMemoryCache[[]byte]
	namespace  string
	ttl        time.Duration
	maxEntries int
	closed     bool
}

// New returns an empty Store. Close it to stop the cache sweeper.
func New(opts ...Option) *Store {
	s := &Store{maxEntries: defaultMaxEntries}
	options.Apply(s, opts...)
	s.values = cache.NewInMemory[[]byte](cache.WithMaxEntries[[]byte](s.maxEntries))
	return s
}

func (s *Store) NamespaceKey(key string) (string, error) {
	return store.Namespace(s.namespace, key)
}

func (s *Store) IsAlive(ctx context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false, ErrClosed
	}
	return true, nil
}

func (s *Store) Begin(ctx context.Context) (store.Batch, error) {
	return &batch{store: s}, nil
}

// Get reads a physical key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, false, ErrClosed
	}
	return s.values.Get(ctx, key)
}

// Close stops the cache sweeper. Later probes and batches fail with ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.values.Close()
	return nil
}

func (s *Store) apply(ctx context.Context, ops []mutation.Mutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// past this point the batch is committed; cancellation must not split it
	ctx = context.WithoutCancel(ctx)
	for _, op := range ops {
		var err error
		switch op.Kind {
		case mutation.KindSet:
			err = s.values.Set(ctx, op.Key, op.Value, s.ttl)
		case mutation.KindDelete:
			err = s.values.Invalidate(ctx, op.Key)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

type batch struct {
	store *Store
	ops   []mutation.Mutation
}

func (b *batch) Set(ctx context.Context, key string, value []byte) error {
	b.ops = append(b.ops, mutation.Set(key, value))
	return nil
}

func (b *batch) Delete(ctx context.Context, key string) error {
	b.ops = append(b.ops, mutation.Delete(key))
	return nil
}

func (b *batch) Execute(ctx context.Context) error {
	ops := b.ops
	b.ops = nil
	return b.store.apply(ctx, ops)
}

var _ store.Client = (*Store)(nil)
