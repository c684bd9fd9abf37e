package persist

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by a Store when the key is absent or expired.
var ErrNotFound = errors.New("key not found")

// Store is one string-keyed backend the shim writes through.
type Store interface {
	Name() string
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, val []byte) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

// TTLStore is implemented by stores that can expire a single key early.
type TTLStore interface {
	SetTTL(ctx context.Context, key string, val []byte, ttl time.Duration) error
}

// Taker is implemented by stores that can read and remove a key in one step.
type Taker interface {
	Take(ctx context.Context, key string) ([]byte, error)
}
