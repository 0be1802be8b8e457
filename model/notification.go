package model

import (
	"time"

	"gorm.io/datatypes"
)

// NotificationMetadata keys match the outbound record consumed by the delivery worker.
type NotificationMetadata struct {
	ConversationID  string `json:"conversationId"`
	SenderRole      string `json:"senderRole"`
	SenderID        string `json:"senderId"`
	RecipientUserID string `json:"recipientUserId,omitempty"`
}

// Notification is a row of the outbound queue. Delivery is handled by another system.
type Notification struct {
	ID        string                                   `json:"id" gorm:"primaryKey;type:text;not null"`
	Recipient string                                   `json:"recipient" gorm:"column:to_email;not null"`
	Subject   string                                   `json:"subject" gorm:"not null"`
	Body      string                                   `json:"body" gorm:"type:text;not null"`
	Metadata  datatypes.JSONType[NotificationMetadata] `json:"metadata" gorm:"type:jsonb;not null"`
	CreatedAt time.Time                                `json:"created_at" gorm:"not null"`
}

func (Notification) TableName() string {
	return "notifications_outbox"
}

type AuditLog struct {
	ID          string         `json:"id" gorm:"primaryKey;type:text;not null"`
	ActorID     string         `json:"actor_id" gorm:"not null;index"`
	ActorRole   string         `json:"actor_role" gorm:"not null"`
	Action      string         `json:"action" gorm:"not null;index"`
	TargetTable string         `json:"target_table"`
	TargetID    string         `json:"target_id" gorm:"index"`
	Details     datatypes.JSON `json:"details" gorm:"type:jsonb"`
	CreatedAt   time.Time      `json:"created_at" gorm:"not null"`
}

func (AuditLog) TableName() string {
	return "audit_log"
}
