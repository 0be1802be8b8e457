package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/koolaai/support_api/model"
	"github.com/koolaai/support_api/services/abuse"
	"gorm.io/gorm"
)

const recordAbuseEventSQL = `
INSERT INTO abuse_events (subject_id, event_type, ip_hash, count, window_reset_at, created_at, updated_at)
VALUES (?, ?, ?, 1, ?, ?, ?)
ON CONFLICT (subject_id, event_type) DO UPDATE SET
	count = CASE WHEN abuse_events.window_reset_at <= EXCLUDED.updated_at THEN 1 ELSE abuse_events.count + 1 END,
	window_reset_at = CASE WHEN abuse_events.window_reset_at <= EXCLUDED.updated_at THEN EXCLUDED.window_reset_at ELSE abuse_events.window_reset_at END,
	ip_hash = EXCLUDED.ip_hash,
	updated_at = EXCLUDED.updated_at
RETURNING subject_id, event_type, ip_hash, count, window_reset_at, created_at, updated_at`

// AbuseEventRepository keeps abuse event windows in the abuse_events table
type AbuseEventRepository struct {
	BaseRepository
	now func() time.Time
}

var _ abuse.EventStore = (*AbuseEventRepository)(nil)

func NewAbuseEventRepository(db *gorm.DB) *AbuseEventRepository {
	return &AbuseEventRepository{
		BaseRepository: NewBaseRepository(db),
		now:            time.Now,
	}
}

// Record increments the live window in a single statement or restarts it at 1.
func (r *AbuseEventRepository) Record(ctx context.Context, subjectID, eventType, ipHash string, window time.Duration) (*model.AbuseEvent, error) {
	now := r.now().UTC()
	var event model.AbuseEvent
	err := r.db.WithContext(ctx).
		Raw(recordAbuseEventSQL, subjectID, eventType, ipHash, now.Add(window), now, now).
		Scan(&event).Error
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// Peek returns the open window, or nil once it has closed.
func (r *AbuseEventRepository) Peek(ctx context.Context, subjectID, eventType string) (*model.AbuseEvent, error) {
	var event model.AbuseEvent
	err := r.db.WithContext(ctx).
		Where("subject_id = ? AND event_type = ?", subjectID, eventType).
		Take(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !event.Live(r.now()) {
		return nil, nil
	}
	return &event, nil
}

func (r *AbuseEventRepository) Clear(ctx context.Context, subjectID, eventType string) error {
	return r.db.WithContext(ctx).
		Where("subject_id = ? AND event_type = ?", subjectID, eventType).
		Delete(&model.AbuseEvent{}).Error
}

// DeleteExpired removes windows that closed before cutoff.
func (r *AbuseEventRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("window_reset_at < ?", cutoff).Delete(&model.AbuseEvent{})
	return res.RowsAffected, res.Error
}
