package services

import (
	"context"
	"os"
	"strconv"
	"time"

	appContext "github.com/alphabatem/common/context"
	"github.com/koolaai/support_api/dto"
	"github.com/koolaai/support_api/services/abuse"
	"github.com/koolaai/support_api/services/ratelimit"
	log "github.com/sirupsen/logrus"
)

// AbuseService wires the challenge verifier and the escalation policy to the
// durable stores.
type AbuseService struct {
	appContext.DefaultService

	turnstile  abuse.TurnstileConfig
	eventStore string
	salt       []byte

	verifier  abuse.Verifier
	escalator *abuse.Escalator
}

const ABUSE_SVC = "abuse_svc"

func (svc AbuseService) Id() string {
	return ABUSE_SVC
}

func (svc *AbuseService) Configure(ctx *appContext.Context) error {
	svc.turnstile = abuse.TurnstileConfig{
		Secret:    os.Getenv("TURNSTILE_SECRET_KEY"),
		VerifyURL: os.Getenv("TURNSTILE_VERIFY_URL"),
		Timeout:   5 * time.Second,
		Burst:     10,
	}
	if v := os.Getenv("TURNSTILE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			svc.turnstile.Timeout = d
		}
	}
	if v := os.Getenv("TURNSTILE_RPS"); v != "" {
		if rps, err := strconv.ParseFloat(v, 64); err == nil {
			svc.turnstile.RatePerSecond = rps
		}
	}

	svc.eventStore = os.Getenv("ABUSE_EVENT_STORE")
	if svc.eventStore == "" {
		svc.eventStore = "postgres"
	}
	svc.salt = []byte(os.Getenv("ABUSE_ADDRESS_SALT"))

	return svc.DefaultService.Configure(ctx)
}

func (svc *AbuseService) Start() error {
	pgSvc := svc.Service(POSTGRES_SVC).(*PostgresService)
	rlSvc := svc.Service(RATE_LIMIT_SVC).(*RateLimitService)

	if svc.turnstile.Secret == "" {
		log.Warn("TURNSTILE_SECRET_KEY is not set; every challenge will fail")
	}
	svc.verifier = abuse.NewTurnstileVerifier(svc.turnstile)

	var events abuse.EventStore = pgSvc.AbuseEvents()
	if svc.eventStore == "counter" {
		events = abuse.NewCounterEventStore(rlSvc.Store())
	}

	svc.escalator = abuse.NewEscalator(rlSvc.Limiter(), svc.verifier, events, pgSvc.Profiles(), abuse.DefaultChatPolicy()).
		WithAddressSalt(svc.salt)

	log.WithField("event_store", svc.eventStore).Info("Abuse escalation ready")
	return nil
}

func (svc *AbuseService) Escalator() *abuse.Escalator {
	return svc.escalator
}

// State reports the escalation state and the per-user chat bucket of userID.
func (svc *AbuseService) State(ctx context.Context, userID string) (*dto.AbuseStateResponse, error) {
	status, err := svc.escalator.State(ctx, userID)
	if err != nil {
		return nil, err
	}

	decisions, err := svc.escalator.UserLimits(ctx, userID)
	if err != nil {
		return nil, err
	}

	return abuseStateResponse(status, decisions), nil
}

func abuseStateResponse(status *abuse.Status, decisions []ratelimit.Decision) *dto.AbuseStateResponse {
	resp := &dto.AbuseStateResponse{
		UserID:        status.UserID,
		State:         string(status.State),
		Restricted:    status.Restricted,
		EventCount:    status.EventCount,
		WindowResetAt: status.WindowResetAt,
		Limits:        make([]dto.RateLimitInfo, 0, len(decisions)),
	}
	for _, d := range decisions {
		info := dto.RateLimitInfo{
			Bucket:    d.Rule.Bucket,
			Limit:     d.Rule.Limit,
			Remaining: d.Remaining,
		}
		if !d.ResetAt.IsZero() {
			resetAt := d.ResetAt
			info.ResetTime = &resetAt
		}
		resp.Limits = append(resp.Limits, info)
	}
	return resp
}
