package counters

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/flashmart/flashmart-backend/pkg/redis"
)

type fakeStore struct {
	mu     sync.Mutex
	values map[string]int64
	err    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{values: make(map[string]int64)}
}

func (f *fakeStore) Incr(_ context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.values[key]++
	return f.values[key], nil
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	value, ok := f.values[key]
	if !ok {
		return "", redis.Nil
	}
	return strconv.FormatInt(value, 10), nil
}

func (f *fakeStore) CounterKey(name string) string {
	return "fm:counter:" + name
}

func TestIncrementAndValue(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc, err := NewService(store)
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := svc.Increment(ctx, OversellAttemptsBlocked); err != nil {
			t.Fatalf("increment: %v", err)
		}
	}

	value, err := svc.Value(ctx, OversellAttemptsBlocked)
	if err != nil {
		t.Fatalf("value: %v", err)
	}
	if value != 3 {
		t.Fatalf("expected 3, got %d", value)
	}
}

func TestValueMissingKeyIsZero(t *testing.T) {
	t.Parallel()

	svc, err := NewService(newFakeStore())
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}

	value, err := svc.Value(context.Background(), ThrottleBlocked)
	if err != nil {
		t.Fatalf("value: %v", err)
	}
	if value != 0 {
		t.Fatalf("expected 0 for missing key, got %d", value)
	}
}

func TestSnapshotPropagatesStoreErrors(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.err = errors.New("connection refused")
	svc, err := NewService(store)
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}

	if _, err := svc.Snapshot(context.Background(), OversellAttemptsBlocked, ThrottleBlocked); err == nil {
		t.Fatal("expected snapshot to surface store errors")
	}
}

func TestSnapshotReadsAllCounters(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc, err := NewService(store)
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	ctx := context.Background()

	if err := svc.Increment(ctx, ThrottleBlocked); err != nil {
		t.Fatalf("increment: %v", err)
	}

	snap, err := svc.Snapshot(ctx, OversellAttemptsBlocked, ThrottleBlocked)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap[OversellAttemptsBlocked] != 0 || snap[ThrottleBlocked] != 1 {
		t.Fatalf("unexpected snapshot: %v", snap)
	}
}
