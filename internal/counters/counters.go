package counters

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/flashmart/flashmart-backend/pkg/redis"
)

// Counter names tracked by the hold engine. Both are monotonic and survive
// process restarts because they live in Redis, not process memory.
const (
	OversellAttemptsBlocked = "oversell_attempts_blocked"
	ThrottleBlocked         = "throttle_blocked"
)

type store interface {
	Incr(ctx context.Context, key string) (int64, error)
	Get(ctx context.Context, key string) (string, error)
	CounterKey(name string) string
}

// Service tracks operational counters in Redis. Increments are best-effort:
// callers log failures and keep serving, a lost tick never fails a request.
type Service struct {
	store store
}

// NewService wires the counter service over a Redis-backed store.
func NewService(st store) (*Service, error) {
	if st == nil {
		return nil, fmt.Errorf("counter store required")
	}
	return &Service{store: st}, nil
}

// Increment adds one to the named counter.
func (s *Service) Increment(ctx context.Context, name string) error {
	if _, err := s.store.Incr(ctx, s.store.CounterKey(name)); err != nil {
		return fmt.Errorf("increment counter %s: %w", name, err)
	}
	return nil
}

// Value reads the current count. A missing key reads as zero.
func (s *Service) Value(ctx context.Context, name string) (int64, error) {
	raw, err := s.store.Get(ctx, s.store.CounterKey(name))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("read counter %s: %w", name, err)
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse counter %s: %w", name, err)
	}
	return value, nil
}

// Snapshot reads several counters at once for reporting surfaces.
func (s *Service) Snapshot(ctx context.Context, names ...string) (map[string]int64, error) {
	out := make(map[string]int64, len(names))
	for _, name := range names {
		value, err := s.Value(ctx, name)
		if err != nil {
			return nil, err
		}
		out[name] = value
	}
	return out, nil
}
