package warp

import (
	"context"

	"github.com/mirkobrombin/go-cachetx/pkg/store"
	"github.com/mirkobrombin/go-foundation/pkg/options"
	"github.com/mirkobrombin/go-warp/v1/adapter"
)

// Option defines a functional configuration for the Store.
type Option = options.Option[Store]

// WithNamespace prefixes every key with ns.
func WithNamespace(ns string) Option {
	return func(s *Store) {
		s.namespace = ns
	}
}

// WithProbe sets the liveness check. Without one the store always reports alive.
func WithProbe(probe func(ctx context.Context) error) Option {
	return func(s *Store) {
		s.probe = probe
	}
}

// Store exposes any go-warp batching adapter as a store.Client.
type Store struct {
	batcher   adapter.Batcher[[]byte]
	namespace string
	probe     func(ctx context.Context) error
}

// NewStore returns a new Store over b.
func NewStore(b adapter.Batcher[[]byte], opts ...Option) *Store {
	s := &Store{batcher: b}
	options.Apply(s, opts...)
	return s
}

func (s *Store) NamespaceKey(key string) (string, error) {
	return store.Namespace(s.namespace, key)
}

func (s *Store) IsAlive(ctx context.Context) (bool, error) {
	if s.probe == nil {
		return true, nil
	}
	if err := s.probe(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Begin implements store.Client.Begin on top of adapter.Batcher.Batch.
func (s *Store) Begin(ctx context.Context) (store.Batch, error) {
	b, err := s.batcher.Batch(ctx)
	if err != nil {
		return nil, err
	}
	return &batch{b: b}, nil
}

type batch struct {
	b adapter.Batch[[]byte]
}

func (b *batch) Set(ctx context.Context, key string, value []byte) error {
	return b.b.Set(ctx, key, value)
}

func (b *batch) Delete(ctx context.Context, key string) error {
	return b.b.Delete(ctx, key)
}

func (b *batch) Execute(ctx context.Context) error {
	return b.b.Commit(ctx)
}

// Ensure interface implementation
var _ store.Client = (*Store)(nil)
