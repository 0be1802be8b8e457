package model

import (
	"time"

	"github.com/koolaai/support_api/shared"
	"gorm.io/datatypes"
)

type ConversationStatus string

const (
	ConversationOpen   ConversationStatus = "open"
	ConversationClosed ConversationStatus = "closed"
)

func (s ConversationStatus) Valid() bool {
	return s == ConversationOpen || s == ConversationClosed
}

type Conversation struct {
	ID                  string             `json:"id" gorm:"primaryKey;type:text;not null"`
	OwnerUserID         string             `json:"owner_user_id" gorm:"not null;index:idx_conversations_owner_status,priority:1"`
	Status              ConversationStatus `json:"status" gorm:"type:text;not null;default:'open';index:idx_conversations_owner_status,priority:2"`
	AssignedTo          *string            `json:"assigned_to,omitempty" gorm:"index"`
	UnreadCountOwner    int                `json:"unread_count_owner" gorm:"not null;default:0"`
	UnreadCountOperator int                `json:"unread_count_operator" gorm:"not null;default:0"`
	LastMessageAt       *time.Time         `json:"last_message_at,omitempty" gorm:"index:idx_conversations_last_message,sort:desc"`
	LastMessagePreview  string             `json:"last_message_preview" gorm:"type:text"`
	CreatedAt           time.Time          `json:"created_at" gorm:"not null"`
	UpdatedAt           time.Time          `json:"updated_at" gorm:"not null"`
}

// ResetUnread zeroes the unread counter kept for the reading side.
func (c *Conversation) ResetUnread(reader shared.Side) {
	if reader == shared.SideOwner {
		c.UnreadCountOwner = 0
	} else {
		c.UnreadCountOperator = 0
	}
}

type Attachment struct {
	Path string `json:"path" validate:"required"`
	URL  string `json:"url" validate:"required"`
	Type string `json:"type" validate:"required,attachment_type"`
	Size int64  `json:"size" validate:"gte=0,lte=5242880"`
	Name string `json:"name" validate:"required"`
}

// Message rows are immutable apart from ReadAt.
type Message struct {
	ID             string                          `json:"id" gorm:"primaryKey;type:text;not null"`
	ConversationID string                          `json:"conversation_id" gorm:"not null;index:idx_messages_conversation_created,priority:1"`
	SenderRole     shared.Side                     `json:"sender_role" gorm:"type:text;not null;index:idx_messages_sender,priority:2"`
	SenderID       string                          `json:"sender_id" gorm:"not null;index:idx_messages_sender,priority:1"`
	Body           string                          `json:"body" gorm:"type:text;not null"`
	Attachments    datatypes.JSONSlice[Attachment] `json:"attachments" gorm:"type:jsonb;not null;default:'[]'"`
	CreatedAt      time.Time                       `json:"created_at" gorm:"not null;index:idx_messages_conversation_created,priority:2"`
	ReadAt         *time.Time                      `json:"read_at,omitempty"`
}
