package model

import "time"

// Profile is the locally persisted part of an identity. Accounts themselves are issued elsewhere.
type Profile struct {
	ID             string     `json:"id" gorm:"primaryKey;type:text;not null"`
	Email          string     `json:"email" gorm:"index"`
	FullName       string     `json:"full_name"`
	Role           string     `json:"role" gorm:"type:text;not null;default:'user'"`
	IsRestricted   bool       `json:"is_restricted" gorm:"not null;default:false"`
	RestrictedAt   *time.Time `json:"restricted_at,omitempty"`
	RestrictReason string     `json:"restrict_reason,omitempty"`
	CreatedAt      time.Time  `json:"created_at" gorm:"not null"`
	UpdatedAt      time.Time  `json:"updated_at" gorm:"not null"`
}
