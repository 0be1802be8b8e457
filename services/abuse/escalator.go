package abuse

import (
	"context"
	"time"

	"github.com/koolaai/support_api/services/ratelimit"
	"github.com/koolaai/support_api/shared"
	log "github.com/sirupsen/logrus"
)

type State string

const (
	StateNormal            State = "normal"
	StateChallengeRequired State = "challenge_required"
	StateSuspended         State = "suspended"
)

// Attempt is one protected action by a caller.
type Attempt struct {
	UserID         string
	CallerAddress  string
	ChallengeToken string
}

type ChatPolicy struct {
	User             ratelimit.Rule
	IP               ratelimit.Rule
	Abuse            ratelimit.Rule
	EventWindow      time.Duration
	SuspendThreshold int
}

func DefaultChatPolicy() ChatPolicy {
	return ChatPolicy{
		User:             ratelimit.Rule{Bucket: "chat_user_minute", Limit: 20, Window: time.Minute},
		IP:               ratelimit.Rule{Bucket: "chat_ip_minute", Limit: 60, Window: time.Minute},
		Abuse:            ratelimit.Rule{Bucket: "chat_abuse", Limit: 2, Window: 10 * time.Minute},
		EventWindow:      time.Hour,
		SuspendThreshold: shared.AbuseSuspensionThreshold,
	}
}

// Status is the derived escalation state of one subject.
type Status struct {
	UserID        string     `json:"user_id"`
	State         State      `json:"state"`
	Restricted    bool       `json:"restricted"`
	EventCount    int        `json:"event_count"`
	WindowResetAt *time.Time `json:"window_reset_at,omitempty"`
}

type Escalator struct {
	limiter  *ratelimit.Limiter
	verifier Verifier
	events   EventStore
	profiles ProfileStore
	policy   ChatPolicy
	salt     []byte
}

func NewEscalator(limiter *ratelimit.Limiter, verifier Verifier, events EventStore, profiles ProfileStore, policy ChatPolicy) *Escalator {
	return &Escalator{
		limiter:  limiter,
		verifier: verifier,
		events:   events,
		profiles: profiles,
		policy:   policy,
	}
}

// WithAddressSalt keys the digest used for stored caller addresses.
func (e *Escalator) WithAddressSalt(salt []byte) *Escalator {
	e.salt = salt
	return e
}

func chatUserKey(userID string) string { return "chat:user:" + userID }

func chatIPKey(address string) string {
	if address == "" {
		address = "unknown"
	}
	return "chat:ip:" + address
}

func unavailable(err error) *shared.AppError {
	appErr := shared.NewUnavailableError("Rate limiting is temporarily unavailable.")
	appErr.Err = err
	return appErr
}

func (e *Escalator) checkRestricted(ctx context.Context, userID string) error {
	if userID == "" {
		return nil
	}
	restricted, err := e.profiles.IsRestricted(ctx, userID)
	if err != nil {
		return shared.NewPersistenceError(err)
	}
	if restricted {
		observeEscalation(outcomeRestricted)
		return shared.NewSuspendedError()
	}
	return nil
}

// GuardChat runs the chat posting escalation: soft throttle, then challenge,
// then suspension once the subject reaches the threshold within the event window.
func (e *Escalator) GuardChat(ctx context.Context, a Attempt) error {
	if err := e.checkRestricted(ctx, a.UserID); err != nil {
		return err
	}

	ipKey := chatIPKey(a.CallerAddress)
	decision, err := e.limiter.CheckScopes(ctx, []ratelimit.Scope{
		{Key: chatUserKey(a.UserID), Rule: e.policy.User},
		{Key: ipKey, Rule: e.policy.IP},
	}, ratelimit.Durable)
	if err != nil {
		return unavailable(err)
	}
	if decision.Allowed {
		observeEscalation(outcomeAllowed)
		return nil
	}

	// The abuse bucket is held per identity and per address so a rotating
	// address cannot keep a subject in the soft tier.
	abuseScopes := []ratelimit.Scope{
		{Key: chatUserKey(a.UserID), Rule: e.policy.Abuse},
		{Key: ipKey, Rule: e.policy.Abuse},
	}
	abuseDecision, err := e.limiter.CheckScopes(ctx, abuseScopes, ratelimit.Durable)
	if err != nil {
		return unavailable(err)
	}
	if abuseDecision.Allowed {
		observeEscalation(outcomeThrottled)
		return shared.NewRateLimitedError("Rate limit exceeded. Please slow down.", decision.RetryAfterSeconds)
	}

	event, err := e.events.Record(ctx, a.UserID, shared.EventChatRateLimit, HashAddress(e.salt, a.CallerAddress), e.policy.EventWindow)
	if err != nil {
		return shared.NewPersistenceError(err)
	}

	logger := log.WithFields(log.Fields{
		"user_id":     a.UserID,
		"event_count": event.Count,
	})

	if event.Count >= e.policy.SuspendThreshold {
		if err := e.profiles.Restrict(ctx, a.UserID, "repeated chat abuse"); err != nil {
			return shared.NewPersistenceError(err)
		}
		logger.Warn("account restricted after repeated chat abuse")
		observeEscalation(outcomeSuspended)
		return shared.NewPermissionError("Account temporarily restricted due to repeated abuse. Contact support.")
	}

	if a.ChallengeToken == "" {
		observeEscalation(outcomeChallengeRequired)
		return shared.NewChallengeRequiredError("Verification challenge required due to repeated chat abuse.", decision.RetryAfterSeconds)
	}

	if err := e.verify(ctx, a); err != nil {
		logger.Info("chat challenge failed")
		return err
	}

	for _, scope := range abuseScopes {
		if err := e.limiter.Reset(ctx, scope.Key, scope.Rule, ratelimit.Durable); err != nil {
			logger.WithError(err).WithField("scope", scope.Key).Warn("failed to reset abuse bucket after challenge")
		}
	}
	return nil
}

// Guard applies rules to scope and lets a verified challenge through once,
// forgiving the exceeded bucket. Denials never advance the abuse event.
func (e *Escalator) Guard(ctx context.Context, a Attempt, scope string, rules []ratelimit.Rule) error {
	if err := e.checkRestricted(ctx, a.UserID); err != nil {
		return err
	}

	decision, err := e.limiter.CheckAll(ctx, scope, rules, ratelimit.Durable)
	if err != nil {
		return unavailable(err)
	}
	if decision.Allowed {
		observeEscalation(outcomeAllowed)
		return nil
	}

	if a.ChallengeToken == "" {
		observeEscalation(outcomeChallengeRequired)
		return shared.NewChallengeRequiredError("Verification challenge required.", decision.RetryAfterSeconds)
	}

	if err := e.verify(ctx, a); err != nil {
		return err
	}

	if err := e.limiter.Reset(ctx, scope, decision.Rule, ratelimit.Durable); err != nil {
		log.WithError(err).WithField("scope", scope).Warn("failed to reset bucket after challenge")
	}
	return nil
}

// GuardFailures inspects a failure bucket without consuming it. Together with
// RecordFailure and ForgiveFailures it is the hook for a credential flow hosted
// by the identity provider: guard before checking, record on failure, forgive
// on success.
func (e *Escalator) GuardFailures(ctx context.Context, a Attempt, scope string, rule ratelimit.Rule) error {
	decision, err := e.limiter.Peek(ctx, scope, rule, ratelimit.Durable)
	if err != nil {
		return unavailable(err)
	}
	if decision.Allowed {
		return nil
	}

	if a.ChallengeToken == "" {
		observeEscalation(outcomeChallengeRequired)
		return shared.NewChallengeRequiredError("Verification challenge required after repeated failures.", decision.RetryAfterSeconds)
	}
	return e.verify(ctx, a)
}

// RecordFailure consumes one unit of the failure bucket and reports whether
// the next attempt will need a challenge.
func (e *Escalator) RecordFailure(ctx context.Context, scope string, rule ratelimit.Rule) (bool, error) {
	decision, err := e.limiter.Check(ctx, scope, rule, ratelimit.Durable)
	if err != nil {
		return false, unavailable(err)
	}
	return decision.Count >= rule.Limit, nil
}

func (e *Escalator) ForgiveFailures(ctx context.Context, scope string, rule ratelimit.Rule) error {
	if err := e.limiter.Reset(ctx, scope, rule, ratelimit.Durable); err != nil {
		return unavailable(err)
	}
	return nil
}

func (e *Escalator) verify(ctx context.Context, a Attempt) error {
	ok, err := e.verifier.Verify(ctx, a.ChallengeToken, a.CallerAddress)
	if err != nil {
		log.WithError(err).WithField("user_id", a.UserID).Warn("challenge verification error")
	}
	if err != nil || !ok {
		observeEscalation(outcomeChallengeFailed)
		return shared.NewChallengeFailedError()
	}
	observeEscalation(outcomeChallengePassed)
	return nil
}

// State derives the escalation state of userID.
func (e *Escalator) State(ctx context.Context, userID string) (*Status, error) {
	restricted, err := e.profiles.IsRestricted(ctx, userID)
	if err != nil {
		return nil, shared.NewPersistenceError(err)
	}

	status := &Status{UserID: userID, State: StateNormal, Restricted: restricted}

	event, err := e.events.Peek(ctx, userID, shared.EventChatRateLimit)
	if err != nil {
		return nil, shared.NewPersistenceError(err)
	}
	if event != nil {
		status.EventCount = event.Count
		resetAt := event.WindowResetAt
		status.WindowResetAt = &resetAt
	}

	switch {
	case restricted:
		status.State = StateSuspended
	case status.EventCount >= 1:
		status.State = StateChallengeRequired
	}
	return status, nil
}

// UserLimits reports the caller's per-user chat bucket without consuming it.
func (e *Escalator) UserLimits(ctx context.Context, userID string) ([]ratelimit.Decision, error) {
	d, err := e.limiter.Peek(ctx, chatUserKey(userID), e.policy.User, ratelimit.Durable)
	if err != nil {
		return nil, unavailable(err)
	}
	return []ratelimit.Decision{d}, nil
}
