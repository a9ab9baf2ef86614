package throttle

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/flashmart/flashmart-backend/internal/counters"
	"github.com/flashmart/flashmart-backend/pkg/config"
	pkgerrors "github.com/flashmart/flashmart-backend/pkg/errors"
	"github.com/flashmart/flashmart-backend/pkg/logger"
)

const (
	scopeEmail = "email"
	scopeIP    = "ip"
)

type store interface {
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	ThrottleKey(scope, id string) string
}

type blockedCounter interface {
	Increment(ctx context.Context, name string) error
}

// Guard enforces the fixed-window hold budget per customer email and per
// client IP. Both counters are incremented before the limit check, so a
// blocked attempt still consumes window quota.
type Guard struct {
	store    store
	counters blockedCounter
	logg     *logger.Logger
	window   time.Duration
	maxHolds int64
}

// NewGuard builds a throttle guard from the configured window and budget.
func NewGuard(st store, ctr blockedCounter, logg *logger.Logger, cfg config.ThrottleConfig) (*Guard, error) {
	if st == nil {
		return nil, fmt.Errorf("throttle store required")
	}
	if cfg.Window <= 0 {
		return nil, fmt.Errorf("throttle window must be positive")
	}
	if cfg.MaxHolds <= 0 {
		return nil, fmt.Errorf("throttle max holds must be positive")
	}
	return &Guard{
		store:    st,
		counters: ctr,
		logg:     logg,
		window:   cfg.Window,
		maxHolds: int64(cfg.MaxHolds),
	}, nil
}

// Check admits or blocks a hold attempt. The email is normalized and hashed
// before it becomes part of a Redis key. Window boundaries are fixed, not
// sliding: the TTL is set when the counter is first created and attempts map
// onto whatever window is currently open.
func (g *Guard) Check(ctx context.Context, email, clientIP string) error {
	emailCount, err := g.count(ctx, scopeEmail, hashValue(normalizeEmail(email)))
	if err != nil {
		return err
	}
	ipCount, err := g.count(ctx, scopeIP, clientIP)
	if err != nil {
		return err
	}

	if emailCount > g.maxHolds || ipCount > g.maxHolds {
		g.recordBlocked(ctx, emailCount, ipCount)
		return pkgerrors.New(pkgerrors.CodeRateLimit,
			"too many holds created from this email or IP, try again in a few minutes")
	}
	return nil
}

func (g *Guard) count(ctx context.Context, scope, id string) (int64, error) {
	if id == "" {
		return 0, nil
	}
	count, err := g.store.IncrWithTTL(ctx, g.store.ThrottleKey(scope, id), g.window)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "throttle counter")
	}
	return count, nil
}

func (g *Guard) recordBlocked(ctx context.Context, emailCount, ipCount int64) {
	if g.logg != nil {
		logCtx := g.logg.WithFields(ctx, map[string]any{
			"email_attempts": emailCount,
			"ip_attempts":    ipCount,
			"limit":          g.maxHolds,
			"window_seconds": int(g.window.Seconds()),
		})
		g.logg.Warn(logCtx, "holds.throttle.blocked")
	}
	if g.counters == nil {
		return
	}
	if err := g.counters.Increment(ctx, counters.ThrottleBlocked); err != nil && g.logg != nil {
		g.logg.Warn(g.logg.WithField(ctx, "error", err.Error()), "holds.throttle.counter_failed")
	}
}

func normalizeEmail(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func hashValue(value string) string {
	if value == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
