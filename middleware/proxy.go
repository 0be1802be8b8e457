package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// TrustProxies makes c.IP() read header only when the socket peer is one of
// proxies. With no proxies the socket address is always used.
func TrustProxies(cfg fiber.Config, header string, proxies []string) fiber.Config {
	if header == "" {
		header = fiber.HeaderXForwardedFor
	}
	cfg.ProxyHeader = header
	cfg.EnableTrustedProxyCheck = true
	cfg.TrustedProxies = proxies
	cfg.EnableIPValidation = true
	return cfg
}

// ParseProxies splits a comma separated list of addresses or CIDR ranges.
func ParseProxies(raw string) []string {
	var proxies []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			proxies = append(proxies, p)
		}
	}
	return proxies
}
