package dto

import "time"

type RateLimitInfo struct {
	Bucket    string     `json:"bucket" example:"chat_user_minute"`
	Limit     int64      `json:"limit" example:"20"`
	Remaining int64      `json:"remaining" example:"17"`
	ResetTime *time.Time `json:"reset_time,omitempty"`
}

type AbuseStateResponse struct {
	UserID        string          `json:"user_id" example:"0192f5c4-7c1e-7b0a-9d7e-65b1c0a1d0aa"`
	State         string          `json:"state" example:"challenge_required"`
	Restricted    bool            `json:"restricted" example:"false"`
	EventCount    int             `json:"event_count" example:"2"`
	WindowResetAt *time.Time      `json:"window_reset_at,omitempty"`
	Limits        []RateLimitInfo `json:"limits"`
}
