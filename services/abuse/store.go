package abuse

import (
	"context"
	"encoding/hex"
	"time"

	"github.com/koolaai/support_api/model"
	"github.com/koolaai/support_api/services/ratelimit"
	"golang.org/x/crypto/blake2b"
)

// EventStore holds rolling AbuseEvent windows. Record increments a live window
// or starts a fresh one at count 1.
type EventStore interface {
	Record(ctx context.Context, subjectID, eventType, ipHash string, window time.Duration) (*model.AbuseEvent, error)
	// Peek returns nil when no live window exists.
	Peek(ctx context.Context, subjectID, eventType string) (*model.AbuseEvent, error)
	Clear(ctx context.Context, subjectID, eventType string) error
}

type ProfileStore interface {
	IsRestricted(ctx context.Context, userID string) (bool, error)
	Restrict(ctx context.Context, userID, reason string) error
}

// CounterEventStore keeps abuse events in a ratelimit.CounterStore, for
// deployments that keep all counters in Redis.
type CounterEventStore struct {
	store ratelimit.CounterStore
}

var _ EventStore = (*CounterEventStore)(nil)

func NewCounterEventStore(store ratelimit.CounterStore) *CounterEventStore {
	return &CounterEventStore{store: store}
}

func eventBucket(eventType string) string {
	return "abuse:" + eventType
}

func (s *CounterEventStore) Record(ctx context.Context, subjectID, eventType, ipHash string, window time.Duration) (*model.AbuseEvent, error) {
	c, err := s.store.Increment(ctx, subjectID, eventBucket(eventType), window)
	if err != nil {
		return nil, err
	}
	return &model.AbuseEvent{
		SubjectID:     subjectID,
		EventType:     eventType,
		IPHash:        ipHash,
		Count:         int(c.Count),
		WindowResetAt: c.ResetAt,
	}, nil
}

func (s *CounterEventStore) Peek(ctx context.Context, subjectID, eventType string) (*model.AbuseEvent, error) {
	c, err := s.store.Peek(ctx, subjectID, eventBucket(eventType))
	if err != nil {
		return nil, err
	}
	if c.Count == 0 {
		return nil, nil
	}
	return &model.AbuseEvent{
		SubjectID:     subjectID,
		EventType:     eventType,
		Count:         int(c.Count),
		WindowResetAt: c.ResetAt,
	}, nil
}

func (s *CounterEventStore) Clear(ctx context.Context, subjectID, eventType string) error {
	return s.store.Reset(ctx, subjectID, eventBucket(eventType))
}

// HashAddress returns a keyed blake2b digest of a caller address so raw IPs are never stored.
func HashAddress(salt []byte, address string) string {
	if address == "" {
		return ""
	}
	h, err := blake2b.New256(salt)
	if err != nil {
		sum := blake2b.Sum256([]byte(address))
		return hex.EncodeToString(sum[:])
	}
	h.Write([]byte(address))
	return hex.EncodeToString(h.Sum(nil))
}
