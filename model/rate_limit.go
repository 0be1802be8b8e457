package model

import "time"

// RateLimitCounter mirrors the rate_limit_counters table owned by the durable counter store.
type RateLimitCounter struct {
	ScopeKey      string    `json:"scope_key" gorm:"primaryKey;type:text;not null"`
	Bucket        string    `json:"bucket" gorm:"primaryKey;type:text;not null"`
	Count         int64     `json:"count" gorm:"not null;default:0"`
	WindowResetAt time.Time `json:"window_reset_at" gorm:"not null"`
}

type AbuseEvent struct {
	SubjectID     string    `json:"subject_id" gorm:"primaryKey;type:text;not null"`
	EventType     string    `json:"event_type" gorm:"primaryKey;type:text;not null"`
	IPHash        string    `json:"ip_hash" gorm:"type:text"`
	Count         int       `json:"count" gorm:"not null;default:0"`
	WindowResetAt time.Time `json:"window_reset_at" gorm:"not null"`
	CreatedAt     time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt     time.Time `json:"updated_at" gorm:"not null"`
}

// Live reports whether the event window is still open at now.
func (e *AbuseEvent) Live(now time.Time) bool {
	return e != nil && now.Before(e.WindowResetAt)
}
