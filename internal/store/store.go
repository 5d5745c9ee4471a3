// Package store provides the key-value persistence layer for engine state:
// cooldown entries, album analysis results, cleanup progress and checkpoints.
//
// The production implementation is backed by BadgerDB. An in-memory
// implementation exists for tests.
package store

import (
	"context"
	"errors"
)

// ErrKeyNotFound is returned by Get when the key does not exist.
var ErrKeyNotFound = errors.New("key not found")

// Store is a string-keyed byte store with prefix scans.
type Store interface {
	// Get returns the value for key, or ErrKeyNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores value under key, overwriting any previous value.
	Put(ctx context.Context, key string, value []byte) error

	// Delete removes the given keys in a single atomic write.
	// Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error

	// Scan calls fn for every key starting with prefix, in key order.
	// The value slice is only valid for the duration of the callback.
	// Returning an error from fn stops the scan and propagates the error.
	Scan(ctx context.Context, prefix string, fn func(key string, value []byte) error) error

	// Close releases underlying resources.
	Close() error
}
