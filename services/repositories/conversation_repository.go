package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/koolaai/support_api/model"
	"github.com/koolaai/support_api/services/ledger"
	"github.com/koolaai/support_api/shared"
	"gorm.io/gorm"
)

const conversationActivityOrder = "COALESCE(last_message_at, created_at) DESC, id DESC"

// ConversationRepository is the Postgres implementation of ledger.Store
type ConversationRepository struct {
	BaseRepository
}

var _ ledger.Store = (*ConversationRepository)(nil)

func NewConversationRepository(db *gorm.DB) *ConversationRepository {
	return &ConversationRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ledger.ErrNotFound
	}
	return err
}

// ResolveOwnerConversation takes a transaction-scoped advisory lock on the owner
// so concurrent first messages agree on a single conversation.
func (r *ConversationRepository) ResolveOwnerConversation(ctx context.Context, ownerID string, now time.Time) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", "conversation:"+ownerID).Error; err != nil {
			return err
		}

		err := tx.Where("owner_user_id = ? AND status = ?", ownerID, model.ConversationOpen).
			Order("created_at DESC, id DESC").
			Take(&conv).Error
		if err == nil || !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		conv = model.Conversation{
			ID:          id.String(),
			OwnerUserID: ownerID,
			Status:      model.ConversationOpen,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		return tx.Create(&conv).Error
	})
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *ConversationRepository) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	var conv model.Conversation
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&conv).Error; err != nil {
		return nil, notFound(err)
	}
	return &conv, nil
}

func (r *ConversationRepository) LatestConversation(ctx context.Context, ownerID string) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.WithContext(ctx).
		Where("owner_user_id = ?", ownerID).
		Order(conversationActivityOrder).
		Take(&conv).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &conv, nil
}

func (r *ConversationRepository) AppendMessage(ctx context.Context, msg *model.Message, preview string) (*model.Conversation, error) {
	updates := map[string]interface{}{
		"last_message_at":      msg.CreatedAt,
		"last_message_preview": preview,
		"status":               model.ConversationOpen,
		"updated_at":           msg.CreatedAt,
	}
	if msg.SenderRole == shared.SideOwner {
		updates["unread_count_operator"] = gorm.Expr("unread_count_operator + 1")
		updates["unread_count_owner"] = 0
	} else {
		updates["unread_count_owner"] = gorm.Expr("unread_count_owner + 1")
		updates["unread_count_operator"] = 0
	}

	var conv model.Conversation
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Conversation{}).Where("id = ?", msg.ConversationID).Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ledger.ErrNotFound
		}
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", msg.ConversationID).Take(&conv).Error
	})
	if err != nil {
		return nil, notFound(err)
	}
	return &conv, nil
}

func (r *ConversationRepository) ListMessages(ctx context.Context, conversationID string, offset, limit int) ([]model.Message, int64, error) {
	var total int64
	query := r.db.WithContext(ctx).Model(&model.Message{}).Where("conversation_id = ?", conversationID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	messages := []model.Message{}
	page := query.Order("created_at DESC, id DESC").Offset(offset)
	if limit > 0 {
		page = page.Limit(limit)
	}
	if err := page.Find(&messages).Error; err != nil {
		return nil, 0, err
	}
	return messages, total, nil
}

func (r *ConversationRepository) MarkRead(ctx context.Context, conversationID string, reader shared.Side, at time.Time) (int64, error) {
	counter := "unread_count_operator"
	if reader == shared.SideOwner {
		counter = "unread_count_owner"
	}

	var stamped int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Conversation{}).Where("id = ?", conversationID).Update(counter, 0)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ledger.ErrNotFound
		}

		res = tx.Model(&model.Message{}).
			Where("conversation_id = ? AND sender_role = ? AND read_at IS NULL", conversationID, reader.Opposite()).
			Update("read_at", at)
		stamped = res.RowsAffected
		return res.Error
	})
	return stamped, err
}

func (r *ConversationRepository) ListConversations(ctx context.Context, filter ledger.ListFilter, offset, limit int) ([]model.Conversation, int64, error) {
	query := r.db.WithContext(ctx).Model(&model.Conversation{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.AssignedTo != "" {
		query = query.Where("assigned_to = ?", filter.AssignedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	conversations := []model.Conversation{}
	page := query.Order(conversationActivityOrder).Offset(offset)
	if limit > 0 {
		page = page.Limit(limit)
	}
	if err := page.Find(&conversations).Error; err != nil {
		return nil, 0, err
	}
	return conversations, total, nil
}

func (r *ConversationRepository) UpdateConversation(ctx context.Context, id string, patch ledger.Patch, at time.Time) (*model.Conversation, error) {
	updates := map[string]interface{}{"updated_at": at}
	if patch.Status != nil {
		updates["status"] = *patch.Status
	}
	if patch.AssignedTo != nil {
		if *patch.AssignedTo == "" {
			updates["assigned_to"] = nil
		} else {
			updates["assigned_to"] = *patch.AssignedTo
		}
	}

	var conv model.Conversation
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Conversation{}).Where("id = ?", id).Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ledger.ErrNotFound
		}
		return tx.Where("id = ?", id).Take(&conv).Error
	})
	if err != nil {
		return nil, notFound(err)
	}
	return &conv, nil
}

func (r *ConversationRepository) SenderStats(ctx context.Context, senderID string, side shared.Side) (ledger.SenderStats, error) {
	var row struct {
		Count  int64
		LastAt *time.Time
	}
	err := r.db.WithContext(ctx).Model(&model.Message{}).
		Select("COUNT(*) AS count, MAX(created_at) AS last_at").
		Where("sender_id = ? AND sender_role = ?", senderID, side).
		Scan(&row).Error
	if err != nil {
		return ledger.SenderStats{}, err
	}
	return ledger.SenderStats{Count: row.Count, LastAt: row.LastAt}, nil
}

func (r *ConversationRepository) WriteAudit(ctx context.Context, entry *model.AuditLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}
