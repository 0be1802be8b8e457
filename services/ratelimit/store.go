package ratelimit

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNoDurableStore = errors.New("ratelimit: durable mode requested but no durable store is configured")
	ErrNoRules        = errors.New("ratelimit: no rules to evaluate")
)

// Counter is the state of one (scopeKey, bucket) window.
// A zero ResetAt means no live window exists.
type Counter struct {
	Count   int64
	ResetAt time.Time
}

// CounterStore is an atomic increment-or-reset-if-expired counter.
// Implementations must give N concurrent Increment calls N distinct sequential
// counts, even when callers share no memory.
type CounterStore interface {
	Increment(ctx context.Context, scopeKey, bucket string, window time.Duration) (Counter, error)
	Peek(ctx context.Context, scopeKey, bucket string) (Counter, error)
	Reset(ctx context.Context, scopeKey, bucket string) error
}
