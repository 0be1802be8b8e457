package abuse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const DefaultTurnstileURL = "https://challenges.cloudflare.com/turnstile/v0/siteverify"

var ErrVerifierNotConfigured = errors.New("abuse: challenge verifier has no secret configured")

// Verifier checks a human-verification token. Any failure means not verified.
type Verifier interface {
	Verify(ctx context.Context, token, callerAddress string) (bool, error)
}

type TurnstileConfig struct {
	Secret    string
	VerifyURL string
	Timeout   time.Duration
	// RatePerSecond paces outbound calls; zero disables pacing.
	RatePerSecond float64
	Burst         int
}

type TurnstileVerifier struct {
	secret    string
	verifyURL string
	timeout   time.Duration
	client    *http.Client
	pacer     *rate.Limiter
}

type siteverifyResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
}

func NewTurnstileVerifier(cfg TurnstileConfig) *TurnstileVerifier {
	if cfg.VerifyURL == "" {
		cfg.VerifyURL = DefaultTurnstileURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	v := &TurnstileVerifier{
		secret:    cfg.Secret,
		verifyURL: cfg.VerifyURL,
		timeout:   cfg.Timeout,
		client:    &http.Client{Timeout: cfg.Timeout},
	}
	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		v.pacer = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}
	return v
}

func (v *TurnstileVerifier) Verify(ctx context.Context, token, callerAddress string) (bool, error) {
	ok, err := v.verify(ctx, token, callerAddress)
	switch {
	case err != nil:
		observeVerification("error")
	case ok:
		observeVerification("success")
	default:
		observeVerification("rejected")
	}
	return ok, err
}

func (v *TurnstileVerifier) verify(ctx context.Context, token, callerAddress string) (bool, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return false, nil
	}
	if v.secret == "" {
		return false, ErrVerifierNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	if v.pacer != nil {
		if err := v.pacer.Wait(ctx); err != nil {
			return false, fmt.Errorf("abuse: verifier pacing: %w", err)
		}
	}

	form := url.Values{}
	form.Set("secret", v.secret)
	form.Set("response", token)
	if callerAddress != "" {
		form.Set("remoteip", callerAddress)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("abuse: siteverify request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false, fmt.Errorf("abuse: siteverify returned %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return false, fmt.Errorf("abuse: read siteverify body: %w", err)
	}

	var payload siteverifyResponse
	if err := sonic.Unmarshal(raw, &payload); err != nil {
		return false, fmt.Errorf("abuse: decode siteverify body: %w", err)
	}
	if !payload.Success {
		log.WithField("error_codes", payload.ErrorCodes).Debug("challenge token rejected")
	}
	return payload.Success, nil
}
