package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	pkgerrors "github.com/flashmart/flashmart-backend/pkg/errors"
)

const defaultLeaseTTL = 5 * time.Second

// redisStore defines the coordination-store operations the lease needs.
type redisStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	LockKey(name string) string
}

// Service hands out named leases backed by Redis SETNX + TTL. Acquisition is
// a single non-blocking attempt; a crashed holder is recovered by lease expiry.
type Service struct {
	client redisStore
	ttl    time.Duration
}

// NewService constructs the lease service. ttl bounds every lease so a dead
// holder cannot wedge a product or order past the lease window.
func NewService(client redisStore, ttl time.Duration) (*Service, error) {
	if client == nil {
		return nil, errors.New("redis client required for locks")
	}
	if ttl <= 0 {
		ttl = defaultLeaseTTL
	}
	return &Service{client: client, ttl: ttl}, nil
}

// ProductLockName names the lease serializing stock decisions for a product.
func ProductLockName(productID string) string {
	return "product:" + productID
}

// OrderLockName names the lease serializing terminal transitions for an order.
func OrderLockName(orderID string) string {
	return "order:" + orderID
}

// Acquire attempts to take the named lease. It never blocks or retries: when
// the lease is held elsewhere the caller gets a LOCK_NOT_ACQUIRED error and
// decides its own retry policy. On success the returned token proves ownership.
func (s *Service) Acquire(ctx context.Context, name string) (string, error) {
	token := uuid.NewString()
	ok, err := s.client.SetNX(ctx, s.client.LockKey(name), token, s.ttl)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("acquire lock %q", name))
	}
	if !ok {
		return "", pkgerrors.New(pkgerrors.CodeLockNotAcquired, fmt.Sprintf("lock %q already held", name))
	}
	return token, nil
}

// Release frees the lease only while the stored token still matches: after
// lease expiry the key may belong to a newer holder, and deleting it then
// would hand a third caller an unguarded critical section.
func (s *Service) Release(ctx context.Context, name, token string) error {
	if token == "" {
		return nil
	}
	key := s.client.LockKey(name)
	value, err := s.client.Get(ctx, key)
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil
		}
		return fmt.Errorf("read lock owner: %w", err)
	}
	if value != token {
		return nil
	}
	if err := s.client.Del(ctx, key); err != nil {
		return fmt.Errorf("delete lock: %w", err)
	}
	return nil
}

// TTL exposes the lease duration, mainly for logging and tests.
func (s *Service) TTL() time.Duration {
	return s.ttl
}
