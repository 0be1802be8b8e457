package ledger

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/koolaai/support_api/model"
	"github.com/koolaai/support_api/shared"
	"gorm.io/datatypes"
)

const (
	ActionConversationUpdated = "conversation.updated"
	ActionConversationReplied = "conversation.replied"
)

type Viewer struct {
	Side shared.Side
	ID   string
}

// Page is one-based.
type Page struct {
	Number int
	Size   int
}

func (p Page) offset() int {
	if p.Number < 1 {
		return 0
	}
	return (p.Number - 1) * p.Size
}

type Actor struct {
	ID   string
	Role shared.Role
}

// Thread is one page of a conversation, oldest message first.
type Thread struct {
	Conversation *model.Conversation
	Messages     []model.Message
	Total        int64
}

type Ledger struct {
	store Store
	now   func() time.Time
}

func New(store Store) *Ledger {
	return &Ledger{store: store, now: time.Now}
}

func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

func storeError(err error, notFound string) error {
	if errors.Is(err, ErrNotFound) {
		return shared.NewNotFoundError(notFound)
	}
	if _, ok := shared.GetAppError(err); ok {
		return err
	}
	return shared.NewPersistenceError(err)
}

func (l *Ledger) ResolveOwnerConversation(ctx context.Context, ownerID string) (*model.Conversation, error) {
	conv, err := l.store.ResolveOwnerConversation(ctx, ownerID, l.now())
	if err != nil {
		return nil, storeError(err, "Conversation not found.")
	}
	return conv, nil
}

func (l *Ledger) Conversation(ctx context.Context, id string) (*model.Conversation, error) {
	conv, err := l.store.GetConversation(ctx, id)
	if err != nil {
		return nil, storeError(err, "Conversation not found.")
	}
	return conv, nil
}

// Preview truncates body to the stored preview length in runes.
func Preview(body string) string {
	if utf8.RuneCountInString(body) <= shared.MessagePreviewLength {
		return body
	}
	runes := []rune(body)
	return string(runes[:shared.MessagePreviewLength])
}

// Append persists msg and updates the conversation summary: the opposite side's
// unread counter goes up by one, the sender's drops to zero and the thread reopens.
func (l *Ledger) Append(ctx context.Context, conversationID string, msg model.Message) (*model.Message, *model.Conversation, error) {
	if !msg.SenderRole.Valid() {
		return nil, nil, shared.NewValidationError("Unknown sender role.", nil)
	}
	if strings.TrimSpace(msg.Body) == "" {
		return nil, nil, shared.NewValidationError("Message is required.", nil)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, nil, shared.NewPersistenceError(err)
	}
	msg.ID = id.String()
	msg.ConversationID = conversationID
	msg.CreatedAt = l.now()
	msg.ReadAt = nil
	if msg.Attachments == nil {
		msg.Attachments = datatypes.JSONSlice[model.Attachment]{}
	}

	conv, err := l.store.AppendMessage(ctx, &msg, Preview(msg.Body))
	if err != nil {
		return nil, nil, storeError(err, "Conversation not found.")
	}
	return &msg, conv, nil
}

// Fetch returns a page of a conversation as viewer sees it and marks the other
// side's messages read. Owners always get their most recently active thread;
// an owner with no conversation gets an empty Thread.
func (l *Ledger) Fetch(ctx context.Context, viewer Viewer, conversationID string, page Page) (*Thread, error) {
	var (
		conv *model.Conversation
		err  error
	)

	if viewer.Side == shared.SideOwner {
		conv, err = l.store.LatestConversation(ctx, viewer.ID)
		if errors.Is(err, ErrNotFound) {
			return &Thread{Messages: []model.Message{}}, nil
		}
	} else {
		conv, err = l.store.GetConversation(ctx, conversationID)
	}
	if err != nil {
		return nil, storeError(err, "Conversation not found.")
	}

	if _, err := l.store.MarkRead(ctx, conv.ID, viewer.Side, l.now()); err != nil {
		return nil, storeError(err, "Conversation not found.")
	}
	conv.ResetUnread(viewer.Side)

	msgs, total, err := l.store.ListMessages(ctx, conv.ID, page.offset(), page.Size)
	if err != nil {
		return nil, storeError(err, "Conversation not found.")
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}

	return &Thread{Conversation: conv, Messages: msgs, Total: total}, nil
}

func (l *Ledger) List(ctx context.Context, filter ListFilter, page Page) ([]model.Conversation, int64, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, shared.NewValidationError("Invalid status filter.", nil)
	}
	convs, total, err := l.store.ListConversations(ctx, filter, page.offset(), page.Size)
	if err != nil {
		return nil, 0, storeError(err, "Conversation not found.")
	}
	return convs, total, nil
}

func (l *Ledger) Update(ctx context.Context, actor Actor, id string, patch Patch) (*model.Conversation, error) {
	if patch.Empty() {
		return nil, shared.NewValidationError("No changes supplied.", nil)
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return nil, shared.NewValidationError("Invalid status.", nil)
	}

	conv, err := l.store.UpdateConversation(ctx, id, patch, l.now())
	if err != nil {
		return nil, storeError(err, "Conversation not found.")
	}

	details := map[string]interface{}{}
	if patch.Status != nil {
		details["status"] = *patch.Status
	}
	if patch.AssignedTo != nil {
		details["assigned_to"] = *patch.AssignedTo
	}
	if err := l.RecordAudit(ctx, actor, ActionConversationUpdated, conv.ID, details); err != nil {
		return nil, err
	}
	return conv, nil
}

func (l *Ledger) SenderStats(ctx context.Context, senderID string, side shared.Side) (SenderStats, error) {
	stats, err := l.store.SenderStats(ctx, senderID, side)
	if err != nil {
		return SenderStats{}, storeError(err, "Sender not found.")
	}
	return stats, nil
}

func (l *Ledger) RecordAudit(ctx context.Context, actor Actor, action, conversationID string, details map[string]interface{}) error {
	raw, err := sonic.Marshal(details)
	if err != nil {
		return shared.NewPersistenceError(err)
	}
	id, err := uuid.NewV7()
	if err != nil {
		return shared.NewPersistenceError(err)
	}

	entry := &model.AuditLog{
		ID:          id.String(),
		ActorID:     actor.ID,
		ActorRole:   actor.Role.String(),
		Action:      action,
		TargetTable: "conversations",
		TargetID:    conversationID,
		Details:     datatypes.JSON(raw),
		CreatedAt:   l.now(),
	}
	if err := l.store.WriteAudit(ctx, entry); err != nil {
		return shared.NewPersistenceError(err)
	}
	return nil
}
