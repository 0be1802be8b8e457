package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/koolaai/support_api/model"
	"github.com/koolaai/support_api/shared"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/datatypes"
)

// Outbox appends one notification record for a downstream deliverer.
type Outbox interface {
	Enqueue(ctx context.Context, n *model.Notification) error
}

var EnqueuedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "notifications_enqueued_total",
		Help: "Outbound notifications by backend and result",
	},
	[]string{"backend", "result"},
)

func observeEnqueue(backend string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	EnqueuedTotal.WithLabelValues(backend, result).Inc()
}

// Event describes one committed message that should reach the other side.
type Event struct {
	ConversationID  string
	SenderRole      shared.Side
	SenderID        string
	RecipientUserID string
}

// Composer turns ledger events into notification records.
type Composer struct {
	SupportInbox string
	now          func() time.Time
}

func NewComposer(supportInbox string) *Composer {
	return &Composer{SupportInbox: supportInbox, now: time.Now}
}

// Compose addresses owner messages to the support inbox and operator replies to
// the owner. The owner's address is resolved by the deliverer from RecipientUserID.
func (c *Composer) Compose(e Event) (*model.Notification, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}

	n := &model.Notification{
		ID:        id.String(),
		CreatedAt: c.now(),
		Metadata: datatypes.NewJSONType(model.NotificationMetadata{
			ConversationID:  e.ConversationID,
			SenderRole:      string(e.SenderRole),
			SenderID:        e.SenderID,
			RecipientUserID: e.RecipientUserID,
		}),
	}

	if e.SenderRole == shared.SideOwner {
		n.Recipient = c.SupportInbox
		n.Subject = "New support chat message"
		n.Body = fmt.Sprintf("Conversation %s received a new user message.", e.ConversationID)
	} else {
		n.Recipient = "user:" + e.RecipientUserID
		n.Subject = "Support replied to your conversation"
		n.Body = fmt.Sprintf("Conversation %s has a new reply from support.", e.ConversationID)
	}
	return n, nil
}

// Subject maps a notification onto the routing key used by message brokers.
func Subject(prefix string, n *model.Notification) string {
	side := n.Metadata.Data().SenderRole
	if side == "" {
		side = "unknown"
	}
	return prefix + "." + side
}
