package redis

import (
	"context"
	"time"

	"github.com/mirkobrombin/go-cachetx/pkg/store"
	"github.com/mirkobrombin/go-foundation/pkg/options"
	redis "github.com/redis/go-redis/v9"
)

// Config holds the connection settings of a Redis-backed store.
type Config struct {
	Addr        string        `yaml:"addr"`
	Username    string        `yaml:"username"`
	Password    string        `yaml:"password"`
	DB          int           `yaml:"db"`
	Namespace   string        `yaml:"namespace"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
	// TTL applied to every SET. Zero keeps keys forever.
	TTL time.Duration `yaml:"ttl"`
}

// Option defines a functional configuration for the Store.
type Option = options.Option[Store]

// WithNamespace prefixes every key with ns.
func WithNamespace(ns string) Option {
	return func(s *Store) {
		s.namespace = ns
	}
}

// WithTTL sets the expiration used by batched SETs.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// Store is a store.Client talking to Redis. Batches are MULTI/EXEC pipelines.
type Store struct {
	client    redis.UniversalClient
	namespace string
	ttl       time.Duration
}

// New dials Redis lazily using cfg.
func New(cfg Config) *Store {
	return NewFromClient(newClient(cfg), WithNamespace(cfg.Namespace), WithTTL(cfg.TTL))
}

func newClient(cfg Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Username:    cfg.Username,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})
}

// NewFromClient wraps an existing client, standalone or cluster.
func NewFromClient(c redis.UniversalClient, opts ...Option) *Store {
	s := &Store{client: c}
	options.Apply(s, opts...)
	return s
}

func (s *Store) NamespaceKey(key string) (string, error) {
	return store.Namespace(s.namespace, key)
}

// IsAlive sends a PING.
func (s *Store) IsAlive(ctx context.Context) (bool, error) {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) Begin(ctx context.Context) (store.Batch, error) {
	return &batch{pipe: s.client.TxPipeline(), ttl: s.ttl}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

type batch struct {
	pipe redis.Pipeliner
	ttl  time.Duration
}

func (b *batch) Set(ctx context.Context, key string, value []byte) error {
	b.pipe.Set(ctx, key, value, b.ttl)
	return nil
}

func (b *batch) Delete(ctx context.Context, key string) error {
	b.pipe.Del(ctx, key)
	return nil
}

// Execute sends the queued commands wrapped in MULTI/EXEC.
func (b *batch) Execute(ctx context.Context) error {
	_, err := b.pipe.Exec(ctx)
	return err
}

var _ store.Client = (*Store)(nil)
