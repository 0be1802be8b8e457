package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/koolaai/support_api/services/ratelimit"
	"github.com/koolaai/support_api/shared"
	log "github.com/sirupsen/logrus"
)

// KeyFunc picks the scope key a request is counted under.
type KeyFunc func(c *fiber.Ctx) string

// ByIP counts requests per caller address.
func ByIP(prefix string) KeyFunc {
	return func(c *fiber.Ctx) string {
		return prefix + ":ip:" + c.IP()
	}
}

// ByUser counts authenticated requests per user and falls back to the caller address.
func ByUser(prefix string) KeyFunc {
	return func(c *fiber.Ctx) string {
		if identity, ok := CurrentIdentity(c); ok {
			return prefix + ":user:" + identity.UserID
		}
		return prefix + ":ip:" + c.IP()
	}
}

// RateLimit applies rule to every request under key. In best-effort mode a
// store failure lets the request through.
func RateLimit(limiter *ratelimit.Limiter, rule ratelimit.Rule, mode ratelimit.Mode, key KeyFunc) fiber.Handler {
	return func(c *fiber.Ctx) error {
		scope := key(c)
		decision, err := limiter.Check(c.UserContext(), scope, rule, mode)
		if err != nil {
			log.WithError(err).WithFields(log.Fields{
				"bucket": rule.Bucket,
				"scope":  scope,
			}).Error("rate limit check failed")
			return shared.NewUnavailableError("Rate limit service unavailable")
		}

		for k, v := range decision.Headers() {
			c.Set(k, v)
		}
		if !decision.Allowed {
			return shared.NewRateLimitedError("Too many requests. Please slow down.", decision.RetryAfterSeconds)
		}
		return c.Next()
	}
}
