// Package store defines the capability a participant needs from a key-value
// store client: key namespacing, a liveness probe and atomic write batches.
package store

import (
	"context"
	"errors"
)

var (
	ErrUnavailable = errors.New("store: unavailable")
	ErrEmptyKey    = errors.New("store: empty key")
)

// Client is the store side of a participant.
type Client interface {
	// NamespaceKey maps a logical key to the key used on the wire.
	NamespaceKey(key string) (string, error)
	// IsAlive probes the store. Transport failures are returned as errors.
	IsAlive(ctx context.Context) (bool, error)
	// Begin opens a new write batch.
	Begin(ctx context.Context) (Batch, error)
}

// Batch queues writes and applies them all at once, or none of them.
type Batch interface {
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Execute(ctx context.Context) error
}

// Namespace prefixes key with prefix, separated by a colon.
func Namespace(prefix, key string) (string, error) {
	if key == "" {
		return "", ErrEmptyKey
	}
	if prefix == "" {
		return key, nil
	}
	return prefix + ":" + key, nil
}
