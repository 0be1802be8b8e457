package ingest

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/koolaai/support_api/model"
	"github.com/koolaai/support_api/services/abuse"
	"github.com/koolaai/support_api/services/ledger"
	"github.com/koolaai/support_api/services/notify"
	"github.com/koolaai/support_api/shared"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

var MessagesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "chat_messages_total",
		Help: "Inbound chat messages by side and outcome",
	},
	[]string{"side", "outcome"},
)

type Principal struct {
	UserID        string
	Role          shared.Role
	EmailVerified bool
}

// Inbound is one message submission. Side is the path it arrived on; operator
// submissions must name ConversationID.
type Inbound struct {
	Side           shared.Side
	Principal      Principal
	CallerAddress  string
	ConversationID string
	Body           string
	Attachments    []model.Attachment
	ChallengeToken string
}

type Result struct {
	ConversationID string
	MessageID      string
	Notified       bool
	// NotificationErr is set when the message committed but the outbox rejected it.
	NotificationErr error
}

type ChatGuard interface {
	GuardChat(ctx context.Context, a abuse.Attempt) error
}

type RestrictionChecker interface {
	IsRestricted(ctx context.Context, userID string) (bool, error)
}

type Pipeline struct {
	ledger   *ledger.Ledger
	guard    ChatGuard
	profiles RestrictionChecker
	outbox   notify.Outbox
	composer *notify.Composer
	cooldown time.Duration
	now      func() time.Time
}

func NewPipeline(l *ledger.Ledger, guard ChatGuard, profiles RestrictionChecker, outbox notify.Outbox, composer *notify.Composer) *Pipeline {
	return &Pipeline{
		ledger:   l,
		guard:    guard,
		profiles: profiles,
		outbox:   outbox,
		composer: composer,
		cooldown: shared.ChatMessageCooldownSeconds * time.Second,
		now:      time.Now,
	}
}

func (p *Pipeline) WithClock(now func() time.Time) *Pipeline {
	p.now = now
	return p
}

// Submit validates, gates and persists one message, then emits its notification.
// Every rejection happens before the ledger is written.
func (p *Pipeline) Submit(ctx context.Context, in Inbound) (*Result, error) {
	res, err := p.submit(ctx, in)
	outcome := "accepted"
	if err != nil {
		outcome = "rejected"
		if appErr, ok := shared.GetAppError(err); ok {
			outcome = string(appErr.Kind)
		}
	}
	MessagesTotal.WithLabelValues(string(in.Side), outcome).Inc()
	return res, err
}

func (p *Pipeline) submit(ctx context.Context, in Inbound) (*Result, error) {
	if !in.Side.Valid() {
		return nil, shared.NewValidationError("Unknown message path.", nil)
	}

	body, err := validateBody(in.Side, in.Body)
	if err != nil {
		return nil, err
	}
	if err := ValidateAttachments(in.Attachments); err != nil {
		return nil, err
	}

	if err := p.checkIdentity(ctx, in); err != nil {
		return nil, err
	}

	if in.Side == shared.SideOwner {
		err := p.guard.GuardChat(ctx, abuse.Attempt{
			UserID:         in.Principal.UserID,
			CallerAddress:  in.CallerAddress,
			ChallengeToken: in.ChallengeToken,
		})
		if err != nil {
			return nil, err
		}
	}

	stats, err := p.ledger.SenderStats(ctx, in.Principal.UserID, in.Side)
	if err != nil {
		return nil, err
	}
	if in.Side == shared.SideOwner && stats.Count == 0 && LooksLikeURL(body) {
		return nil, shared.NewValidationError("Links are blocked in your first message. Send a plain-text intro first.", nil)
	}
	if stats.LastAt != nil {
		elapsed := p.now().Sub(*stats.LastAt)
		if elapsed < p.cooldown {
			retry := int(math.Ceil((p.cooldown - elapsed).Seconds()))
			return nil, shared.NewRateLimitedError(
				fmt.Sprintf("Please wait %d seconds between messages.", int(p.cooldown/time.Second)), retry)
		}
	}

	conv, err := p.resolve(ctx, in)
	if err != nil {
		return nil, err
	}

	attachments := datatypes.JSONSlice[model.Attachment](in.Attachments)
	msg, conv, err := p.ledger.Append(ctx, conv.ID, model.Message{
		SenderRole:  in.Side,
		SenderID:    in.Principal.UserID,
		Body:        body,
		Attachments: attachments,
	})
	if err != nil {
		return nil, err
	}

	res := &Result{ConversationID: conv.ID, MessageID: msg.ID}
	logger := log.WithFields(log.Fields{
		"conversation_id": conv.ID,
		"message_id":      msg.ID,
		"side":            in.Side,
	})

	if in.Side == shared.SideOperator {
		actor := ledger.Actor{ID: in.Principal.UserID, Role: in.Principal.Role}
		details := map[string]interface{}{"message_id": msg.ID}
		if err := p.ledger.RecordAudit(ctx, actor, ledger.ActionConversationReplied, conv.ID, details); err != nil {
			logger.WithError(err).Warn("failed to write reply audit entry")
		}
	}

	res.NotificationErr = p.notify(ctx, in, conv)
	res.Notified = res.NotificationErr == nil
	if res.NotificationErr != nil {
		logger.WithError(res.NotificationErr).Error("message stored but notification was not enqueued")
	}
	return res, nil
}

func (p *Pipeline) checkIdentity(ctx context.Context, in Inbound) error {
	restricted, err := p.profiles.IsRestricted(ctx, in.Principal.UserID)
	if err != nil {
		return shared.NewPersistenceError(err)
	}
	if restricted {
		return shared.NewSuspendedError()
	}

	switch in.Side {
	case shared.SideOwner:
		if in.Principal.Role != shared.RoleOwner {
			return shared.NewPermissionError("Only customers can post to their own support chat.")
		}
		if !in.Principal.EmailVerified {
			return shared.NewPermissionError("Verify your email before sending chat messages.")
		}
	case shared.SideOperator:
		if !in.Principal.Role.IsSupport() {
			return shared.NewPermissionError("Support role required.")
		}
	}
	return nil
}

func (p *Pipeline) resolve(ctx context.Context, in Inbound) (*model.Conversation, error) {
	if in.Side == shared.SideOwner {
		return p.ledger.ResolveOwnerConversation(ctx, in.Principal.UserID)
	}
	if in.ConversationID == "" {
		return nil, shared.NewValidationError("Conversation id is required.", nil)
	}
	return p.ledger.Conversation(ctx, in.ConversationID)
}

func (p *Pipeline) notify(ctx context.Context, in Inbound, conv *model.Conversation) error {
	if p.outbox == nil {
		return nil
	}

	event := notify.Event{
		ConversationID: conv.ID,
		SenderRole:     in.Side,
		SenderID:       in.Principal.UserID,
	}
	if in.Side == shared.SideOperator {
		event.RecipientUserID = conv.OwnerUserID
	}

	n, err := p.composer.Compose(event)
	if err != nil {
		return err
	}
	return p.outbox.Enqueue(ctx, n)
}
