package ratelimit

import (
	"context"
	"math"
	"strconv"
	"time"
)

type Mode int

const (
	// Durable counts in the shared store; a store failure is returned to the caller.
	Durable Mode = iota
	// BestEffort counts in process memory and never fails.
	BestEffort
)

func (m Mode) String() string {
	if m == BestEffort {
		return "best_effort"
	}
	return "durable"
}

// Rule allows at most Limit increments per Window on one bucket.
type Rule struct {
	Bucket string
	Limit  int64
	Window time.Duration
}

// RuleDescriptor is the serialized form of a Rule.
type RuleDescriptor struct {
	BucketLabel   string `json:"bucketLabel"`
	Limit         int64  `json:"limit"`
	WindowSeconds int64  `json:"windowSeconds"`
}

func (r Rule) Descriptor() RuleDescriptor {
	return RuleDescriptor{BucketLabel: r.Bucket, Limit: r.Limit, WindowSeconds: int64(r.Window / time.Second)}
}

func (d RuleDescriptor) Rule() Rule {
	return Rule{Bucket: d.BucketLabel, Limit: d.Limit, Window: time.Duration(d.WindowSeconds) * time.Second}
}

// Scope pairs a rule with the key it is counted against.
type Scope struct {
	Key  string
	Rule Rule
}

type Decision struct {
	Allowed           bool
	Count             int64
	Remaining         int64
	RetryAfterSeconds int
	ResetAt           time.Time
	Rule              Rule
}

type Limiter struct {
	durable CounterStore
	local   CounterStore
	now     func() time.Time
}

type Option func(*Limiter)

func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

func WithLocalStore(store CounterStore) Option {
	return func(l *Limiter) { l.local = store }
}

// NewLimiter builds a limiter over durable. A nil durable store leaves only
// best-effort mode usable.
func NewLimiter(durable CounterStore, opts ...Option) *Limiter {
	l := &Limiter{durable: durable, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	if l.local == nil {
		l.local = NewMemoryStoreWithClock(l.now)
	}
	return l
}

func (l *Limiter) store(mode Mode) (CounterStore, error) {
	if mode == BestEffort {
		return l.local, nil
	}
	if l.durable == nil {
		return nil, ErrNoDurableStore
	}
	return l.durable, nil
}

// Check consumes one unit of rule for key.
func (l *Limiter) Check(ctx context.Context, key string, rule Rule, mode Mode) (Decision, error) {
	store, err := l.store(mode)
	if err != nil {
		return Decision{}, err
	}

	counter, err := store.Increment(ctx, key, rule.Bucket, rule.Window)
	if err != nil {
		if mode == BestEffort {
			return Decision{Allowed: true, Remaining: rule.Limit, Rule: rule}, nil
		}
		return Decision{}, err
	}

	d := l.decide(rule, counter, counter.Count <= rule.Limit)
	observeDecision(rule.Bucket, mode, d.Allowed)
	return d, nil
}

// Peek reports whether the next increment would be allowed without consuming.
func (l *Limiter) Peek(ctx context.Context, key string, rule Rule, mode Mode) (Decision, error) {
	store, err := l.store(mode)
	if err != nil {
		return Decision{}, err
	}

	counter, err := store.Peek(ctx, key, rule.Bucket)
	if err != nil {
		if mode == BestEffort {
			return Decision{Allowed: true, Remaining: rule.Limit, Rule: rule}, nil
		}
		return Decision{}, err
	}
	return l.decide(rule, counter, counter.Count < rule.Limit), nil
}

func (l *Limiter) Reset(ctx context.Context, key string, rule Rule, mode Mode) error {
	store, err := l.store(mode)
	if err != nil {
		return err
	}
	if err := store.Reset(ctx, key, rule.Bucket); err != nil && mode == Durable {
		return err
	}
	return nil
}

// CheckAll applies every rule to key in order.
func (l *Limiter) CheckAll(ctx context.Context, key string, rules []Rule, mode Mode) (Decision, error) {
	scopes := make([]Scope, len(rules))
	for i, rule := range rules {
		scopes[i] = Scope{Key: key, Rule: rule}
	}
	return l.CheckScopes(ctx, scopes, mode)
}

// CheckScopes applies each scope in order and stops at the first denial.
// The returned RetryAfterSeconds is the largest seen across evaluated scopes
// and Remaining the smallest.
func (l *Limiter) CheckScopes(ctx context.Context, scopes []Scope, mode Mode) (Decision, error) {
	if len(scopes) == 0 {
		return Decision{}, ErrNoRules
	}

	var result Decision
	for i, scope := range scopes {
		d, err := l.Check(ctx, scope.Key, scope.Rule, mode)
		if err != nil {
			return Decision{}, err
		}
		if i == 0 {
			result = d
		} else {
			retry := max(result.RetryAfterSeconds, d.RetryAfterSeconds)
			if d.Remaining < result.Remaining || !d.Allowed {
				result = d
			}
			result.RetryAfterSeconds = retry
		}
		if !d.Allowed {
			break
		}
	}
	return result, nil
}

func (l *Limiter) decide(rule Rule, counter Counter, allowed bool) Decision {
	remaining := rule.Limit - counter.Count
	if remaining < 0 {
		remaining = 0
	}
	if !allowed {
		remaining = 0
	}

	var retry int
	if counter.ResetAt.IsZero() {
		retry = ceilSeconds(rule.Window)
	} else {
		retry = ceilSeconds(counter.ResetAt.Sub(l.now()))
	}

	return Decision{
		Allowed:           allowed,
		Count:             counter.Count,
		Remaining:         remaining,
		RetryAfterSeconds: retry,
		ResetAt:           counter.ResetAt,
		Rule:              rule,
	}
}

// ceilSeconds rounds d up to whole seconds with a floor of one.
func ceilSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

// Headers returns the X-RateLimit-* values for d.
func (d Decision) Headers() map[string]string {
	h := map[string]string{
		"X-RateLimit-Limit":     strconv.FormatInt(d.Rule.Limit, 10),
		"X-RateLimit-Remaining": strconv.FormatInt(d.Remaining, 10),
	}
	if !d.ResetAt.IsZero() {
		h["X-RateLimit-Reset"] = strconv.FormatInt(d.ResetAt.Unix(), 10)
	}
	if !d.Allowed {
		h["Retry-After"] = strconv.Itoa(d.RetryAfterSeconds)
	}
	return h
}
