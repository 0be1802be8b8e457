package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/koolaai/support_api/model"
	"github.com/koolaai/support_api/shared"
)

// MemoryStore is a process-local Store. A single mutex serializes every
// operation, which also serializes conversation creation per owner.
type MemoryStore struct {
	mu            sync.Mutex
	conversations map[string]*model.Conversation
	messages      map[string][]*model.Message
	audit         []model.AuditLog
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conversations: make(map[string]*model.Conversation),
		messages:      make(map[string][]*model.Message),
	}
}

func copyConversation(c *model.Conversation) *model.Conversation {
	cp := *c
	if c.AssignedTo != nil {
		v := *c.AssignedTo
		cp.AssignedTo = &v
	}
	if c.LastMessageAt != nil {
		v := *c.LastMessageAt
		cp.LastMessageAt = &v
	}
	return &cp
}

func activity(c *model.Conversation) time.Time {
	if c.LastMessageAt != nil {
		return *c.LastMessageAt
	}
	return c.CreatedAt
}

func (s *MemoryStore) ResolveOwnerConversation(_ context.Context, ownerID string, now time.Time) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var latest *model.Conversation
	for _, c := range s.conversations {
		if c.OwnerUserID != ownerID || c.Status != model.ConversationOpen {
			continue
		}
		if latest == nil || c.CreatedAt.After(latest.CreatedAt) {
			latest = c
		}
	}
	if latest != nil {
		return copyConversation(latest), nil
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}
	conv := &model.Conversation{
		ID:          id.String(),
		OwnerUserID: ownerID,
		Status:      model.ConversationOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.conversations[conv.ID] = conv
	return copyConversation(conv), nil
}

func (s *MemoryStore) GetConversation(_ context.Context, id string) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyConversation(c), nil
}

func (s *MemoryStore) LatestConversation(_ context.Context, ownerID string) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var latest *model.Conversation
	for _, c := range s.conversations {
		if c.OwnerUserID != ownerID {
			continue
		}
		if latest == nil || activity(c).After(activity(latest)) {
			latest = c
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	return copyConversation(latest), nil
}

func (s *MemoryStore) AppendMessage(_ context.Context, msg *model.Message, preview string) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversations[msg.ConversationID]
	if !ok {
		return nil, ErrNotFound
	}

	stored := *msg
	s.messages[c.ID] = append(s.messages[c.ID], &stored)

	at := msg.CreatedAt
	c.LastMessageAt = &at
	c.LastMessagePreview = preview
	c.Status = model.ConversationOpen
	c.UpdatedAt = msg.CreatedAt
	if msg.SenderRole == shared.SideOwner {
		c.UnreadCountOperator++
		c.UnreadCountOwner = 0
	} else {
		c.UnreadCountOwner++
		c.UnreadCountOperator = 0
	}
	return copyConversation(c), nil
}

func (s *MemoryStore) ListMessages(_ context.Context, conversationID string, offset, limit int) ([]model.Message, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := make([]model.Message, 0, len(s.messages[conversationID]))
	for _, m := range s.messages[conversationID] {
		all = append(all, *m)
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	total := int64(len(all))
	if offset >= len(all) {
		return []model.Message{}, total, nil
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return all[offset:end], total, nil
}

func (s *MemoryStore) MarkRead(_ context.Context, conversationID string, reader shared.Side, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversations[conversationID]
	if !ok {
		return 0, ErrNotFound
	}

	var stamped int64
	for _, m := range s.messages[conversationID] {
		if m.SenderRole == reader.Opposite() && m.ReadAt == nil {
			t := at
			m.ReadAt = &t
			stamped++
		}
	}
	c.ResetUnread(reader)
	return stamped, nil
}

func (s *MemoryStore) ListConversations(_ context.Context, filter ListFilter, offset, limit int) ([]model.Conversation, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []model.Conversation
	for _, c := range s.conversations {
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		if filter.AssignedTo != "" && (c.AssignedTo == nil || *c.AssignedTo != filter.AssignedTo) {
			continue
		}
		matched = append(matched, *copyConversation(c))
	}
	sort.SliceStable(matched, func(i, j int) bool {
		ai, aj := activity(&matched[i]), activity(&matched[j])
		if ai.Equal(aj) {
			return matched[i].ID > matched[j].ID
		}
		return ai.After(aj)
	})

	total := int64(len(matched))
	if offset >= len(matched) {
		return []model.Conversation{}, total, nil
	}
	end := len(matched)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return matched[offset:end], total, nil
}

func (s *MemoryStore) UpdateConversation(_ context.Context, id string, patch Patch, at time.Time) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}
	if patch.Status != nil {
		c.Status = *patch.Status
	}
	if patch.AssignedTo != nil {
		if *patch.AssignedTo == "" {
			c.AssignedTo = nil
		} else {
			v := *patch.AssignedTo
			c.AssignedTo = &v
		}
	}
	c.UpdatedAt = at
	return copyConversation(c), nil
}

func (s *MemoryStore) SenderStats(_ context.Context, senderID string, side shared.Side) (SenderStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stats SenderStats
	for _, msgs := range s.messages {
		for _, m := range msgs {
			if m.SenderID != senderID || m.SenderRole != side {
				continue
			}
			stats.Count++
			if stats.LastAt == nil || m.CreatedAt.After(*stats.LastAt) {
				t := m.CreatedAt
				stats.LastAt = &t
			}
		}
	}
	return stats, nil
}

func (s *MemoryStore) WriteAudit(_ context.Context, entry *model.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, *entry)
	return nil
}

// AuditEntries returns a copy of the recorded audit log.
func (s *MemoryStore) AuditEntries() []model.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.AuditLog, len(s.audit))
	copy(out, s.audit)
	return out
}
