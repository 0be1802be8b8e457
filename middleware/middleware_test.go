package middleware

import (
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/koolaai/support_api/services/ratelimit"
	"github.com/koolaai/support_api/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticVerifier map[string]*shared.Identity

func (v staticVerifier) VerifyJWTToken(token string) (*shared.Identity, error) {
	if identity, ok := v[token]; ok {
		return identity, nil
	}
	return nil, errors.New("bad token")
}

func newApp() *fiber.App {
	return fiber.New(fiber.Config{ErrorHandler: shared.ResponseError})
}

// app.Test connects from 0.0.0.0.
const testPeer = "0.0.0.0"

func newProxiedApp(proxies ...string) *fiber.App {
	return fiber.New(TrustProxies(fiber.Config{ErrorHandler: shared.ResponseError}, "", proxies))
}

var tokens = staticVerifier{
	"owner-token": {UserID: "u1", Role: shared.RoleOwner, EmailVerified: true},
	"agent-token": {UserID: "a1", Role: shared.RoleOperator, EmailVerified: true},
	"admin-token": {UserID: "x1", Role: shared.RoleAdmin},
}

func TestExtractTokenFromHeader(t *testing.T) {
	token, err := ExtractTokenFromHeader("Bearer abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", token)

	for _, header := range []string{"", "abc", "Basic abc", "Bearer "} {
		_, err := ExtractTokenFromHeader(header)
		assert.True(t, shared.IsKind(err, shared.KindUnauthorized), header)
	}
}

func TestRequiredAuthAndRoles(t *testing.T) {
	app := newApp()
	app.Get("/owner", RequiredAuth(tokens), RequireOwner(), func(c *fiber.Ctx) error {
		identity, ok := CurrentIdentity(c)
		if !ok {
			return fiber.ErrInternalServerError
		}
		return c.SendString(identity.UserID)
	})
	app.Get("/support", RequiredAuth(tokens), RequireSupport(), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	tests := []struct {
		name   string
		path   string
		token  string
		status int
	}{
		{name: "no token", path: "/owner", status: fiber.StatusUnauthorized},
		{name: "bad token", path: "/owner", token: "nope", status: fiber.StatusUnauthorized},
		{name: "owner", path: "/owner", token: "owner-token", status: fiber.StatusOK},
		{name: "agent on owner route", path: "/owner", token: "agent-token", status: fiber.StatusForbidden},
		{name: "owner on support route", path: "/support", token: "owner-token", status: fiber.StatusForbidden},
		{name: "agent", path: "/support", token: "agent-token", status: fiber.StatusNoContent},
		{name: "admin", path: "/support", token: "admin-token", status: fiber.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(fiber.MethodGet, tt.path, nil)
			if tt.token != "" {
				req.Header.Set(fiber.HeaderAuthorization, "Bearer "+tt.token)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter := ratelimit.NewLimiter(nil)
	rule := ratelimit.Rule{Bucket: "test_gateway", Limit: 2, Window: time.Minute}

	app := newProxiedApp(testPeer)
	app.Get("/limited", RateLimit(limiter, rule, ratelimit.BestEffort, ByIP("test")), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(fiber.MethodGet, "/limited", nil)
		req.Header.Set(fiber.HeaderXForwardedFor, "203.0.113.7")
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, "2", resp.Header.Get("X-RateLimit-Limit"))
	}

	req := httptest.NewRequest(fiber.MethodGet, "/limited", nil)
	req.Header.Set(fiber.HeaderXForwardedFor, "203.0.113.7")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(fiber.HeaderRetryAfter))

	other := httptest.NewRequest(fiber.MethodGet, "/limited", nil)
	other.Header.Set(fiber.HeaderXForwardedFor, "203.0.113.8, 10.0.0.1")
	resp, err = app.Test(other)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestRateLimitIgnoresUntrustedForwardedFor(t *testing.T) {
	limiter := ratelimit.NewLimiter(nil)
	rule := ratelimit.Rule{Bucket: "test_spoof", Limit: 2, Window: time.Minute}

	app := newProxiedApp("192.0.2.10")
	app.Get("/limited", RateLimit(limiter, rule, ratelimit.BestEffort, ByIP("test")), func(c *fiber.Ctx) error {
		return c.SendString(c.IP())
	})

	var codes []int
	for i := 0; i < 4; i++ {
		req := httptest.NewRequest(fiber.MethodGet, "/limited", nil)
		req.Header.Set(fiber.HeaderXForwardedFor, fmt.Sprintf("203.0.113.%d", i))
		resp, err := app.Test(req)
		require.NoError(t, err)
		codes = append(codes, resp.StatusCode)
	}
	assert.Equal(t, []int{200, 200, 429, 429}, codes)
}

func TestTrustProxiesResolvesClientIP(t *testing.T) {
	handler := func(c *fiber.Ctx) error { return c.SendString(c.IP()) }

	tests := []struct {
		name   string
		app    *fiber.App
		header string
		want   string
	}{
		{name: "trusted peer", app: newProxiedApp(testPeer), header: "198.51.100.4, 10.0.0.1", want: "198.51.100.4"},
		{name: "trusted range", app: newProxiedApp("0.0.0.0/8"), header: "198.51.100.4", want: "198.51.100.4"},
		{name: "untrusted peer", app: newProxiedApp("192.0.2.10"), header: "198.51.100.4", want: testPeer},
		{name: "no proxies", app: newProxiedApp(), header: "198.51.100.4", want: testPeer},
		{name: "garbage header", app: newProxiedApp(testPeer), header: "not-an-ip", want: testPeer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.app.Get("/ip", handler)
			req := httptest.NewRequest(fiber.MethodGet, "/ip", nil)
			req.Header.Set(fiber.HeaderXForwardedFor, tt.header)
			resp, err := tt.app.Test(req)
			require.NoError(t, err)
			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(body))
		})
	}
}

func TestParseProxies(t *testing.T) {
	assert.Equal(t, []string{"10.0.0.1", "172.16.0.0/12"}, ParseProxies(" 10.0.0.1, ,172.16.0.0/12 "))
	assert.Nil(t, ParseProxies(""))
}

func TestDurableRateLimitWithoutStoreIsUnavailable(t *testing.T) {
	limiter := ratelimit.NewLimiter(nil)
	rule := ratelimit.Rule{Bucket: "test_durable", Limit: 2, Window: time.Minute}

	app := newApp()
	app.Get("/durable", RateLimit(limiter, rule, ratelimit.Durable, ByUser("test")), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/durable", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}
