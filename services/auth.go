package services

import (
	"context"
	"sync"
	"time"

	appContext "github.com/alphabatem/common/context"
	"github.com/gofiber/fiber/v2"
	"github.com/koolaai/support_api/middleware"
	"github.com/koolaai/support_api/services/repositories"
	"github.com/koolaai/support_api/shared"
	log "github.com/sirupsen/logrus"
)

const profileSyncInterval = 10 * time.Minute

type AuthMiddleware struct {
	appContext.DefaultService

	jwtSvc   *JWTService
	profiles *repositories.ProfileRepository

	synced sync.Map
}

const AUTH_MIDDLEWARE_SVC = "auth"

func (svc AuthMiddleware) Id() string {
	return AUTH_MIDDLEWARE_SVC
}

func (svc *AuthMiddleware) Start() error {
	svc.jwtSvc = svc.Service(JWT_SVC).(*JWTService)
	if pgSvc, ok := svc.Service(POSTGRES_SVC).(*PostgresService); ok {
		svc.profiles = pgSvc.Profiles()
	}
	return nil
}

func (svc *AuthMiddleware) RequiredAuth() fiber.Handler {
	return middleware.RequiredAuth(svc.jwtSvc)
}

// SyncProfile mirrors the caller into the profiles table in the background.
// It runs after RequiredAuth and never fails the request.
func (svc *AuthMiddleware) SyncProfile() fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity, ok := middleware.CurrentIdentity(c)
		if ok && svc.profiles != nil && svc.dueForSync(identity.UserID) {
			go svc.syncProfile(*identity)
		}
		return c.Next()
	}
}

func (svc *AuthMiddleware) dueForSync(userID string) bool {
	now := time.Now()
	if last, ok := svc.synced.Load(userID); ok && now.Sub(last.(time.Time)) < profileSyncInterval {
		return false
	}
	svc.synced.Store(userID, now)
	return true
}

func (svc *AuthMiddleware) syncProfile(identity shared.Identity) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := svc.profiles.Sync(ctx, identity.UserID, identity.Email, identity.Role.String()); err != nil {
		svc.synced.Delete(identity.UserID)
		log.WithError(err).WithField("user_id", identity.UserID).Warn("failed to sync profile")
	}
}

func (svc *AuthMiddleware) RequireSupport() fiber.Handler {
	return middleware.RequireSupport()
}
