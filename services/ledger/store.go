package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/koolaai/support_api/model"
	"github.com/koolaai/support_api/shared"
)

var ErrNotFound = errors.New("ledger: record not found")

type ListFilter struct {
	Status     model.ConversationStatus
	AssignedTo string
}

// Patch changes status and/or assignment. A non-nil empty AssignedTo clears it.
type Patch struct {
	Status     *model.ConversationStatus
	AssignedTo *string
}

func (p Patch) Empty() bool {
	return p.Status == nil && p.AssignedTo == nil
}

type SenderStats struct {
	Count  int64
	LastAt *time.Time
}

// Store is the persistence boundary of the ledger.
type Store interface {
	// ResolveOwnerConversation returns the latest open conversation of ownerID,
	// creating one if none exists. Creation is serialized per owner.
	ResolveOwnerConversation(ctx context.Context, ownerID string, now time.Time) (*model.Conversation, error)
	GetConversation(ctx context.Context, id string) (*model.Conversation, error)
	// LatestConversation returns the owner's conversation with the most recent activity.
	LatestConversation(ctx context.Context, ownerID string) (*model.Conversation, error)
	// AppendMessage inserts msg and applies the summary update in one transaction.
	AppendMessage(ctx context.Context, msg *model.Message, preview string) (*model.Conversation, error)
	// ListMessages returns one page ordered newest first plus the total count.
	ListMessages(ctx context.Context, conversationID string, offset, limit int) ([]model.Message, int64, error)
	// MarkRead stamps read_at on unread messages from the other side and zeroes reader's counter.
	MarkRead(ctx context.Context, conversationID string, reader shared.Side, at time.Time) (int64, error)
	ListConversations(ctx context.Context, filter ListFilter, offset, limit int) ([]model.Conversation, int64, error)
	UpdateConversation(ctx context.Context, id string, patch Patch, at time.Time) (*model.Conversation, error)
	SenderStats(ctx context.Context, senderID string, side shared.Side) (SenderStats, error)
	WriteAudit(ctx context.Context, entry *model.AuditLog) error
}
