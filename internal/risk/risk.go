// Package risk gates login and bind traffic: static denylists plus
// fixed-window rate limits backed by the shared kv store.
package risk

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/statusmvp/wallet-auth/internal/config"
	"github.com/statusmvp/wallet-auth/internal/errs"
	"github.com/statusmvp/wallet-auth/internal/kv"
	"github.com/statusmvp/wallet-auth/internal/metrics"
	"github.com/statusmvp/wallet-auth/internal/observability/logger"
)

const keyPrefix = "auth:rl:"

// Rate limit scopes, surfaced in error details and metrics labels.
const (
	ScopeLoginIP     = "login-ip"
	ScopeLoginDevice = "login-device"
	ScopeBindWallet  = "bind-wallet"
)

var keySanitizer = regexp.MustCompile(`[^a-z0-9_\-:.]`)

// Gate applies denylists and fixed-window rate limits.
type Gate struct {
	store   kv.Store
	cfg     config.RiskConfig
	metrics *metrics.Recorder
}

// New creates a Gate. The metrics recorder may be nil.
func New(store kv.Store, cfg config.RiskConfig, rec *metrics.Recorder) *Gate {
	return &Gate{store: store, cfg: cfg, metrics: rec}
}

// CheckIPAllowed rejects IPs on the static denylist. Blank IPs pass.
func (g *Gate) CheckIPAllowed(ip string) error {
	if strings.TrimSpace(ip) == "" {
		return nil
	}
	for _, denied := range g.cfg.DenyIPs {
		if strings.EqualFold(strings.TrimSpace(denied), ip) {
			return errs.New(errs.Forbidden, "ip blocked", http.StatusForbidden)
		}
	}
	return nil
}

// CheckProviderAllowed rejects provider subs on the static denylist,
// case-insensitively. Blank subs pass.
func (g *Gate) CheckProviderAllowed(providerSub string) error {
	if strings.TrimSpace(providerSub) == "" {
		return nil
	}
	normalized := strings.ToLower(providerSub)
	for _, denied := range g.cfg.DenyProviderSubs {
		if strings.ToLower(strings.TrimSpace(denied)) == normalized {
			return errs.New(errs.Forbidden, "provider blocked", http.StatusForbidden)
		}
	}
	return nil
}

// CheckLoginRateLimits enforces the per-IP window and, when a device id is
// present, the per-device window. Both counters are consumed on each call.
func (g *Gate) CheckLoginRateLimits(ctx context.Context, ip, deviceID string) error {
	window := g.window()
	if err := g.checkLimit(ctx, ScopeLoginIP, g.key("login:ip", ip), atLeastOne(g.cfg.LoginIPLimit), window); err != nil {
		return err
	}
	if strings.TrimSpace(deviceID) != "" {
		if err := g.checkLimit(ctx, ScopeLoginDevice, g.key("login:device", deviceID), atLeastOne(g.cfg.LoginDeviceLimit), window); err != nil {
			return err
		}
	}
	return nil
}

// CheckBindRateLimit enforces the per-wallet bind window.
func (g *Gate) CheckBindRateLimit(ctx context.Context, walletSub string) error {
	return g.checkLimit(ctx, ScopeBindWallet, g.key("bind:wallet", walletSub), atLeastOne(g.cfg.BindWalletLimit), g.window())
}

// checkLimit is a fixed-window counter: INCR, arm the expiry on first hit,
// reject above the limit with the window remainder as retry-after.
func (g *Gate) checkLimit(ctx context.Context, scope, key string, limit int, window time.Duration) error {
	if key == "" {
		return nil
	}
	count, err := g.store.Incr(ctx, key)
	if err != nil {
		// Sin contador no hay gate; un outage del store no puede abrir la puerta.
		logger.From(ctx).Error("rate limit counter unavailable", logger.String("scope", scope), logger.Err(err))
		return errs.New(errs.InternalError, "risk check unavailable", http.StatusInternalServerError)
	}
	if count == 1 {
		if err := g.store.Expire(ctx, key, window); err != nil {
			logger.From(ctx).Warn("rate limit expire failed", logger.String("scope", scope), logger.Err(err))
		}
	}
	if count <= int64(limit) {
		return nil
	}

	retryAfter := int(window / time.Second)
	if ttl, err := g.store.TTL(ctx, key); err == nil && ttl >= time.Second {
		retryAfter = int(ttl / time.Second)
	}
	g.metrics.RateLimited(scope)
	return errs.New(errs.RateLimited, "rate limited", http.StatusTooManyRequests).
		WithRetryAfter(retryAfter).
		WithDetails(map[string]any{"scope": scope})
}

func (g *Gate) window() time.Duration {
	w := g.cfg.Window.Std()
	if w < time.Second {
		w = time.Second
	}
	return w
}

func (g *Gate) key(prefix, suffix string) string {
	s := normalizeKey(suffix)
	if s == "" {
		return ""
	}
	return keyPrefix + prefix + ":" + s
}

func normalizeKey(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	return keySanitizer.ReplaceAllString(v, "_")
}

func atLeastOne(v int) int {
	if v < 1 {
		return 1
	}
	return v
}
