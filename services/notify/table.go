package notify

import (
	"context"
	"fmt"

	"github.com/koolaai/support_api/model"
	"gorm.io/gorm"
)

// TableOutbox appends notifications to the notifications_outbox table.
type TableOutbox struct {
	db *gorm.DB
}

var _ Outbox = (*TableOutbox)(nil)

func NewTableOutbox(db *gorm.DB) *TableOutbox {
	return &TableOutbox{db: db}
}

func (o *TableOutbox) Enqueue(ctx context.Context, n *model.Notification) (err error) {
	defer func() { observeEnqueue("postgres", err) }()

	if err = o.db.WithContext(ctx).Create(n).Error; err != nil {
		return fmt.Errorf("notify: insert outbox row: %w", err)
	}
	return nil
}
