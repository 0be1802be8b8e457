package abuse

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/koolaai/support_api/services/ratelimit"
	"github.com/koolaai/support_api/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type stubVerifier struct {
	ok    bool
	err   error
	calls int
}

func (v *stubVerifier) Verify(context.Context, string, string) (bool, error) {
	v.calls++
	return v.ok, v.err
}

type memoryProfiles struct {
	mu         sync.Mutex
	restricted map[string]string
}

func newMemoryProfiles() *memoryProfiles {
	return &memoryProfiles{restricted: make(map[string]string)}
}

func (p *memoryProfiles) IsRestricted(_ context.Context, userID string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.restricted[userID]
	return ok, nil
}

func (p *memoryProfiles) Restrict(_ context.Context, userID, reason string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.restricted[userID] = reason
	return nil
}

type fixture struct {
	clock    *testClock
	verifier *stubVerifier
	profiles *memoryProfiles
	events   *CounterEventStore
	esc      *Escalator
}

func testPolicy() ChatPolicy {
	p := DefaultChatPolicy()
	p.User = ratelimit.Rule{Bucket: "chat_user_minute", Limit: 1, Window: time.Minute}
	return p
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := &testClock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	store := ratelimit.NewMemoryStoreWithClock(clock.Now)
	limiter := ratelimit.NewLimiter(store, ratelimit.WithClock(clock.Now))
	events := NewCounterEventStore(ratelimit.NewMemoryStoreWithClock(clock.Now))
	verifier := &stubVerifier{}
	profiles := newMemoryProfiles()

	return &fixture{
		clock:    clock,
		verifier: verifier,
		profiles: profiles,
		events:   events,
		esc:      NewEscalator(limiter, verifier, events, profiles, testPolicy()),
	}
}

func (f *fixture) chat(token string) error {
	return f.esc.GuardChat(context.Background(), Attempt{UserID: "u1", CallerAddress: "198.51.100.4", ChallengeToken: token})
}

func requireKind(t *testing.T, err error, kind shared.ErrorKind) *shared.AppError {
	t.Helper()
	appErr, ok := shared.GetAppError(err)
	require.True(t, ok, "expected AppError, got %v", err)
	require.Equal(t, kind, appErr.Kind, appErr.Message)
	return appErr
}

// exhaust spends the allowed message and both soft-throttle slots.
func (f *fixture) exhaust(t *testing.T) {
	t.Helper()
	if err := f.chat(""); err != nil {
		requireKind(t, err, shared.KindRateLimited)
	}
	for i := 0; i < 2; i++ {
		requireKind(t, f.chat(""), shared.KindRateLimited)
	}
}

func TestGuardChatAllowsWithinLimits(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.chat(""))

	status, err := f.esc.State(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, StateNormal, status.State)
}

func TestGuardChatSoftThrottleDoesNotAdvanceEvent(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.chat(""))

	appErr := requireKind(t, f.chat(""), shared.KindRateLimited)
	assert.Equal(t, http.StatusTooManyRequests, appErr.StatusCode)
	assert.Equal(t, 60, appErr.RetryAfter)
	assert.False(t, appErr.ChallengeRequired)

	ev, err := f.events.Peek(context.Background(), "u1", shared.EventChatRateLimit)
	require.NoError(t, err)
	assert.Nil(t, ev)
}

func TestGuardChatEscalationMonotonicity(t *testing.T) {
	f := newFixture(t)
	f.exhaust(t)

	for count := 1; count <= 4; count++ {
		appErr := requireKind(t, f.chat(""), shared.KindChallengeRequired)
		assert.True(t, appErr.ChallengeRequired)
		assert.Equal(t, http.StatusTooManyRequests, appErr.StatusCode)
		assert.GreaterOrEqual(t, appErr.RetryAfter, 1)

		status, err := f.esc.State(context.Background(), "u1")
		require.NoError(t, err)
		assert.Equal(t, StateChallengeRequired, status.State)
		assert.Equal(t, count, status.EventCount)
		assert.False(t, status.Restricted)
	}

	appErr := requireKind(t, f.chat(""), shared.KindPermission)
	assert.Contains(t, appErr.Message, "Contact support")

	status, err := f.esc.State(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, StateSuspended, status.State)

	// suspension is terminal even with a valid token
	f.verifier.ok = true
	f.clock.Advance(2 * time.Hour)
	requireKind(t, f.chat("good-token"), shared.KindPermission)
	assert.Zero(t, f.verifier.calls)
}

func TestGuardChatRotatingAddressStillEscalates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	attempt := func(i int) error {
		return f.esc.GuardChat(ctx, Attempt{UserID: "u1", CallerAddress: fmt.Sprintf("203.0.113.%d", i)})
	}

	require.NoError(t, attempt(0))
	requireKind(t, attempt(1), shared.KindRateLimited)
	requireKind(t, attempt(2), shared.KindRateLimited)

	for i := 3; i < 7; i++ {
		requireKind(t, attempt(i), shared.KindChallengeRequired)
	}
	requireKind(t, attempt(7), shared.KindPermission)

	status, err := f.esc.State(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, StateSuspended, status.State)

	for i := 8; i < 50; i++ {
		requireKind(t, attempt(i), shared.KindPermission)
	}
}

func TestGuardChatEventWindowExpiryRestartsCount(t *testing.T) {
	f := newFixture(t)
	f.exhaust(t)
	for i := 0; i < 4; i++ {
		requireKind(t, f.chat(""), shared.KindChallengeRequired)
	}

	f.clock.Advance(61 * time.Minute)
	f.exhaust(t)
	requireKind(t, f.chat(""), shared.KindChallengeRequired)

	status, err := f.esc.State(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, status.EventCount)
	assert.Equal(t, StateChallengeRequired, status.State)
}

func TestGuardChatChallengeSuccessProceedsOnce(t *testing.T) {
	f := newFixture(t)
	f.exhaust(t)
	requireKind(t, f.chat(""), shared.KindChallengeRequired)

	f.verifier.ok = true
	require.NoError(t, f.chat("good-token"))
	assert.Equal(t, 1, f.verifier.calls)

	// abuse bucket was forgiven so the next overflow is a soft throttle again
	requireKind(t, f.chat(""), shared.KindRateLimited)
}

func TestGuardChatChallengeFailureFailsClosed(t *testing.T) {
	tests := []struct {
		name     string
		verifier *stubVerifier
	}{
		{name: "rejected", verifier: &stubVerifier{ok: false}},
		{name: "transport error", verifier: &stubVerifier{err: errors.New("timeout")}},
		{name: "error with success", verifier: &stubVerifier{ok: true, err: errors.New("partial")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.esc.verifier = tt.verifier
			f.exhaust(t)

			appErr := requireKind(t, f.chat("bad-token"), shared.KindChallengeRequired)
			assert.Equal(t, http.StatusForbidden, appErr.StatusCode)
			assert.True(t, appErr.ChallengeRequired)

			// abuse bucket stays exhausted
			requireKind(t, f.chat(""), shared.KindChallengeRequired)
		})
	}
}

func TestGuardChatRestrictedFirst(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.profiles.Restrict(context.Background(), "u1", "manual"))

	appErr := requireKind(t, f.chat(""), shared.KindPermission)
	assert.Equal(t, shared.ContactSupportMessage, appErr.Message)
}

func TestGuardChallengesWithoutAdvancingEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rules := []ratelimit.Rule{
		{Bucket: "signup_minute", Limit: 2, Window: time.Minute},
		{Bucket: "signup_hour", Limit: 5, Window: time.Hour},
	}
	attempt := Attempt{CallerAddress: "192.0.2.1"}

	require.NoError(t, f.esc.Guard(ctx, attempt, "signup:192.0.2.1", rules))
	require.NoError(t, f.esc.Guard(ctx, attempt, "signup:192.0.2.1", rules))

	appErr := requireKind(t, f.esc.Guard(ctx, attempt, "signup:192.0.2.1", rules), shared.KindChallengeRequired)
	assert.Equal(t, http.StatusTooManyRequests, appErr.StatusCode)

	attempt.ChallengeToken = "bad"
	appErr = requireKind(t, f.esc.Guard(ctx, attempt, "signup:192.0.2.1", rules), shared.KindChallengeRequired)
	assert.Equal(t, http.StatusForbidden, appErr.StatusCode)

	f.verifier.ok = true
	attempt.ChallengeToken = "good"
	require.NoError(t, f.esc.Guard(ctx, attempt, "signup:192.0.2.1", rules))

	// minute bucket was reset by the verified challenge
	attempt.ChallengeToken = ""
	require.NoError(t, f.esc.Guard(ctx, attempt, "signup:192.0.2.1", rules))

	ev, err := f.events.Peek(ctx, "", shared.EventChatRateLimit)
	require.NoError(t, err)
	assert.Nil(t, ev)
}

func TestGuardFailuresLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rule := ratelimit.Rule{Bucket: "login_failures", Limit: 5, Window: 5 * time.Minute}
	scope := "login:ana@example.com"
	attempt := Attempt{CallerAddress: "192.0.2.9"}

	for i := 1; i <= 5; i++ {
		require.NoError(t, f.esc.GuardFailures(ctx, attempt, scope, rule))
		needs, err := f.esc.RecordFailure(ctx, scope, rule)
		require.NoError(t, err)
		assert.Equal(t, i == 5, needs, "failure %d", i)
	}

	requireKind(t, f.esc.GuardFailures(ctx, attempt, scope, rule), shared.KindChallengeRequired)

	f.verifier.ok = true
	attempt.ChallengeToken = "good"
	require.NoError(t, f.esc.GuardFailures(ctx, attempt, scope, rule))

	require.NoError(t, f.esc.ForgiveFailures(ctx, scope, rule))
	attempt.ChallengeToken = ""
	require.NoError(t, f.esc.GuardFailures(ctx, attempt, scope, rule))
}

func TestHashAddress(t *testing.T) {
	a := HashAddress([]byte("salt"), "198.51.100.4")
	b := HashAddress([]byte("salt"), "198.51.100.4")
	c := HashAddress([]byte("other"), "198.51.100.4")

	assert.Len(t, a, 64)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Empty(t, HashAddress(nil, ""))
}
