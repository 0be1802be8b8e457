package services

import (
	"context"
	"fmt"
	"os"
	"time"

	appContext "github.com/alphabatem/common/context"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/koolaai/support_api/middleware"
	"github.com/koolaai/support_api/services/ratelimit"
	log "github.com/sirupsen/logrus"
)

const (
	RateLimitBackendRedis    = "redis"
	RateLimitBackendPostgres = "postgres"
)

// RateLimitService owns the durable counter store and the process-local one
// used by best-effort gateway limits.
type RateLimitService struct {
	appContext.DefaultService

	backend string
	durable ratelimit.CounterStore
	limiter *ratelimit.Limiter
	local   *ratelimit.MemoryStore
	pool    *pgxpool.Pool

	closed chan struct{}
}

const RATE_LIMIT_SVC = "rate_limit_svc"

func (svc RateLimitService) Id() string {
	return RATE_LIMIT_SVC
}

func (svc *RateLimitService) Configure(ctx *appContext.Context) error {
	svc.backend = os.Getenv("RATE_LIMIT_BACKEND")
	if svc.backend == "" {
		svc.backend = RateLimitBackendRedis
	}
	if svc.backend != RateLimitBackendRedis && svc.backend != RateLimitBackendPostgres {
		return fmt.Errorf("unknown RATE_LIMIT_BACKEND %q", svc.backend)
	}
	svc.closed = make(chan struct{})
	return svc.DefaultService.Configure(ctx)
}

func (svc *RateLimitService) Start() error {
	durable, err := svc.durableStore()
	if err != nil {
		return err
	}

	svc.durable = durable
	svc.local = ratelimit.NewMemoryStore()
	svc.limiter = ratelimit.NewLimiter(durable, ratelimit.WithLocalStore(svc.local))

	go svc.startCleanupJob(time.Minute)

	log.WithField("backend", svc.backend).Info("Rate limiter ready")
	return nil
}

func (svc *RateLimitService) durableStore() (ratelimit.CounterStore, error) {
	switch svc.backend {
	case RateLimitBackendPostgres:
		pgSvc, ok := svc.Service(POSTGRES_SVC).(*PostgresService)
		if !ok {
			return nil, fmt.Errorf("rate limit backend %s requires %s", svc.backend, POSTGRES_SVC)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		pool, err := pgxpool.New(ctx, pgSvc.DSN())
		if err != nil {
			return nil, fmt.Errorf("failed to open counter pool: %w", err)
		}
		store := ratelimit.NewPostgresStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		svc.pool = pool
		return store, nil

	default:
		redisSvc, ok := svc.Service(REDIS_SVC).(*RedisService)
		if !ok {
			return nil, fmt.Errorf("rate limit backend %s requires %s", svc.backend, REDIS_SVC)
		}
		return ratelimit.NewRedisStore(redisSvc.GetClient()), nil
	}
}

func (svc *RateLimitService) Shutdown() {
	if svc.closed != nil {
		close(svc.closed)
	}
	if svc.pool != nil {
		svc.pool.Close()
	}
}

func (svc *RateLimitService) Limiter() *ratelimit.Limiter {
	return svc.limiter
}

// Store is the durable counter store behind the limiter.
func (svc *RateLimitService) Store() ratelimit.CounterStore {
	return svc.durable
}

// IPRateLimit applies a best-effort per-address limit at the gateway.
func (svc *RateLimitService) IPRateLimit(rule ratelimit.Rule) fiber.Handler {
	return middleware.RateLimit(svc.limiter, rule, ratelimit.BestEffort, middleware.ByIP("gateway"))
}

// UserBasedRateLimit applies a durable per-user limit; it must run after RequiredAuth.
func (svc *RateLimitService) UserBasedRateLimit(rule ratelimit.Rule) fiber.Handler {
	return middleware.RateLimit(svc.limiter, rule, ratelimit.Durable, middleware.ByUser("route"))
}

func (svc *RateLimitService) startCleanupJob(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if removed := svc.local.Sweep(); removed > 0 {
				log.WithField("removed", removed).Debug("Expired local counters swept")
			}
		case <-svc.closed:
			return
		}
	}
}
