package holds

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/flashmart/flashmart-backend/internal/counters"
	"github.com/flashmart/flashmart-backend/internal/inventory"
	"github.com/flashmart/flashmart-backend/pkg/db"
	"github.com/flashmart/flashmart-backend/pkg/db/models"
	"github.com/flashmart/flashmart-backend/pkg/enums"
	pkgerrors "github.com/flashmart/flashmart-backend/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:holds_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	products := `
CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  price_cents INTEGER NOT NULL,
  total_stock INTEGER NOT NULL,
  sale_starts_at DATETIME NOT NULL,
  sale_ends_at DATETIME NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`
	orders := `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  product_id TEXT NOT NULL,
  customer_email TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  hold_expires_at DATETIME NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`
	inventoryEvents := `
CREATE TABLE IF NOT EXISTS inventory_events (
  id TEXT PRIMARY KEY,
  product_id TEXT NOT NULL,
  order_id TEXT,
  type TEXT NOT NULL,
  delta INTEGER NOT NULL,
  metadata TEXT,
  created_at DATETIME
);`
	for _, stmt := range []string{products, orders, inventoryEvents} {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("create table: %v", err)
		}
	}
	return conn
}

type fakeLocks struct {
	mu       sync.Mutex
	held     map[string]string
	blocking bool
	acquired int
}

func newFakeLocks(blocking bool) *fakeLocks {
	return &fakeLocks{held: make(map[string]string), blocking: blocking}
}

func (f *fakeLocks) Acquire(ctx context.Context, name string) (string, error) {
	for {
		f.mu.Lock()
		if _, busy := f.held[name]; !busy {
			token := uuid.NewString()
			f.held[name] = token
			f.acquired++
			f.mu.Unlock()
			return token, nil
		}
		f.mu.Unlock()
		if !f.blocking {
			return "", pkgerrors.New(pkgerrors.CodeLockNotAcquired, "lock busy")
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
}

func (f *fakeLocks) Release(_ context.Context, name, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held[name] == token {
		delete(f.held, name)
	}
	return nil
}

type fakeGuard struct {
	err    error
	checks int
	mu     sync.Mutex
}

func (f *fakeGuard) Check(context.Context, string, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks++
	return f.err
}

type fakeCounter struct {
	mu    sync.Mutex
	calls map[string]int
}

func (f *fakeCounter) Increment(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[name]++
	return nil
}

func (f *fakeCounter) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

type productFinder struct {
	db *gorm.DB
}

func (p productFinder) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := p.db.WithContext(ctx).Where("id = ?", id).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

type fixture struct {
	svc     *service
	conn    *gorm.DB
	locks   *fakeLocks
	guard   *fakeGuard
	counter *fakeCounter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := newTestDB(t)
	locks := newFakeLocks(false)
	guard := &fakeGuard{}
	counter := &fakeCounter{}

	eventRepo := inventory.NewRepository(conn)
	stock, err := inventory.NewAccounting(eventRepo)
	if err != nil {
		t.Fatalf("construct accounting: %v", err)
	}
	svc, err := NewService(
		NewRepository(conn),
		eventRepo,
		stock,
		productFinder{db: conn},
		locks,
		guard,
		counter,
		db.FromGorm(conn),
		nil,
		2*time.Minute,
	)
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	return &fixture{
		svc:     svc.(*service),
		conn:    conn,
		locks:   locks,
		guard:   guard,
		counter: counter,
	}
}

func seedProduct(t *testing.T, conn *gorm.DB, totalStock int, startsAt, endsAt time.Time) *models.Product {
	t.Helper()
	product := &models.Product{
		ID:           uuid.New(),
		Name:         "Flash Phone",
		PriceCents:   199900,
		TotalStock:   totalStock,
		SaleStartsAt: startsAt,
		SaleEndsAt:   endsAt,
	}
	if err := conn.Create(product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product
}

func liveProduct(t *testing.T, f *fixture, totalStock int) *models.Product {
	t.Helper()
	now := f.svc.now()
	return seedProduct(t, f.conn, totalStock, now.Add(-time.Hour), now.Add(time.Hour))
}

func eventsForOrder(t *testing.T, conn *gorm.DB, orderID uuid.UUID) []models.InventoryEvent {
	t.Helper()
	var events []models.InventoryEvent
	if err := conn.Where("order_id = ?", orderID).Order("created_at ASC").Find(&events).Error; err != nil {
		t.Fatalf("load events: %v", err)
	}
	return events
}

func TestCreateHold(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return base }
	product := liveProduct(t, f, 10)

	order, err := f.svc.CreateHold(ctx, CreateHoldInput{
		ProductID: product.ID,
		Email:     "buyer@example.com",
		Quantity:  3,
		ClientIP:  "10.0.0.1",
	})
	if err != nil {
		t.Fatalf("create hold: %v", err)
	}
	if order.Status != enums.OrderStatusPending {
		t.Fatalf("expected pending, got %s", order.Status)
	}
	if !order.HoldExpiresAt.Equal(base.Add(2 * time.Minute)) {
		t.Fatalf("unexpected hold expiry: %v", order.HoldExpiresAt)
	}

	events := eventsForOrder(t, f.conn, order.ID)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Type != enums.InventoryEventTypeHoldCreated || events[0].Delta != -3 {
		t.Fatalf("unexpected event: %+v", events[0])
	}

	stock, err := inventory.NewAccounting(inventory.NewRepository(f.conn))
	if err != nil {
		t.Fatalf("construct accounting: %v", err)
	}
	live, err := stock.LiveStock(ctx, product)
	if err != nil {
		t.Fatalf("live stock: %v", err)
	}
	if live != 7 {
		t.Fatalf("expected live stock 7, got %d", live)
	}
	if len(f.locks.held) != 0 {
		t.Fatalf("product lock should be released, still held: %v", f.locks.held)
	}
}

func TestCreateHoldSaleWindow(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	now := f.svc.now()

	upcoming := seedProduct(t, f.conn, 5, now.Add(time.Hour), now.Add(2*time.Hour))
	ended := seedProduct(t, f.conn, 5, now.Add(-2*time.Hour), now.Add(-time.Hour))

	for _, product := range []*models.Product{upcoming, ended} {
		_, err := f.svc.CreateHold(ctx, CreateHoldInput{
			ProductID: product.ID,
			Email:     "buyer@example.com",
			Quantity:  1,
			ClientIP:  "10.0.0.1",
		})
		if !pkgerrors.HasCode(err, pkgerrors.CodeSaleNotActive) {
			t.Fatalf("expected sale not active, got %v", err)
		}
	}

	var count int64
	if err := f.conn.Model(&models.InventoryEvent{}).Count(&count).Error; err != nil {
		t.Fatalf("count events: %v", err)
	}
	if count != 0 {
		t.Fatalf("rejected holds must not write events, got %d", count)
	}
}

func TestCreateHoldInsufficientStock(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	product := liveProduct(t, f, 2)

	_, err := f.svc.CreateHold(ctx, CreateHoldInput{
		ProductID: product.ID,
		Email:     "buyer@example.com",
		Quantity:  3,
		ClientIP:  "10.0.0.1",
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	if f.counter.count(counters.OversellAttemptsBlocked) != 1 {
		t.Fatalf("expected oversell counter increment")
	}

	var count int64
	if err := f.conn.Model(&models.Order{}).Count(&count).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if count != 0 {
		t.Fatalf("blocked hold must not create an order, got %d", count)
	}
}

func TestCreateHoldThrottled(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.guard.err = pkgerrors.New(pkgerrors.CodeRateLimit, "too many holds")
	product := liveProduct(t, f, 5)

	_, err := f.svc.CreateHold(context.Background(), CreateHoldInput{
		ProductID: product.ID,
		Email:     "buyer@example.com",
		Quantity:  1,
		ClientIP:  "10.0.0.1",
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeRateLimit) {
		t.Fatalf("expected rate limit, got %v", err)
	}
	if f.locks.acquired != 0 {
		t.Fatal("throttled request must not touch the product lock")
	}
}

func TestCreateHoldLockContention(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	product := liveProduct(t, f, 5)

	// Simulate another writer holding the product lease.
	if _, err := f.locks.Acquire(ctx, lockNameForProduct(product.ID)); err != nil {
		t.Fatalf("pre-acquire: %v", err)
	}

	_, err := f.svc.CreateHold(ctx, CreateHoldInput{
		ProductID: product.ID,
		Email:     "buyer@example.com",
		Quantity:  1,
		ClientIP:  "10.0.0.1",
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeLockNotAcquired) {
		t.Fatalf("expected lock not acquired, got %v", err)
	}
}

func TestCreateHoldLastUnitRace(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.locks.blocking = true
	ctx := context.Background()
	product := liveProduct(t, f, 1)

	results := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := f.svc.CreateHold(ctx, CreateHoldInput{
				ProductID: product.ID,
				Email:     "buyer@example.com",
				Quantity:  1,
				ClientIP:  "10.0.0.1",
			})
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	var succeeded, blocked int
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case pkgerrors.HasCode(err, pkgerrors.CodeInsufficientStock):
			blocked++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 || blocked != 1 {
		t.Fatalf("expected exactly one winner, got %d wins %d blocks", succeeded, blocked)
	}

	stock, err := inventory.NewAccounting(inventory.NewRepository(f.conn))
	if err != nil {
		t.Fatalf("construct accounting: %v", err)
	}
	live, err := stock.LiveStock(ctx, product)
	if err != nil {
		t.Fatalf("live stock: %v", err)
	}
	if live != 0 {
		t.Fatalf("expected live stock 0, got %d", live)
	}
}

func TestConfirmOrder(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	product := liveProduct(t, f, 5)

	order, err := f.svc.CreateHold(ctx, CreateHoldInput{
		ProductID: product.ID,
		Email:     "buyer@example.com",
		Quantity:  2,
		ClientIP:  "10.0.0.1",
	})
	if err != nil {
		t.Fatalf("create hold: %v", err)
	}

	confirmed, err := f.svc.ConfirmOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if confirmed.Status != enums.OrderStatusConfirmed {
		t.Fatalf("expected confirmed, got %s", confirmed.Status)
	}

	events := eventsForOrder(t, f.conn, order.ID)
	if len(events) != 2 {
		t.Fatalf("expected hold + confirm events, got %d", len(events))
	}
	last := events[len(events)-1]
	if last.Type != enums.InventoryEventTypeOrderConfirmed || last.Delta != 0 {
		t.Fatalf("unexpected confirmation event: %+v", last)
	}

	// Confirming twice must fail without touching the ledger again.
	if _, err := f.svc.ConfirmOrder(ctx, order.ID); !pkgerrors.HasCode(err, pkgerrors.CodeNotPending) {
		t.Fatalf("expected not pending on second confirm, got %v", err)
	}
	if got := len(eventsForOrder(t, f.conn, order.ID)); got != 2 {
		t.Fatalf("second confirm must not append events, got %d", got)
	}
}

func TestConfirmOrderNotFound(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	if _, err := f.svc.ConfirmOrder(context.Background(), uuid.New()); !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestConfirmOrderAfterExpiry(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return base }
	product := liveProduct(t, f, 5)

	order, err := f.svc.CreateHold(ctx, CreateHoldInput{
		ProductID: product.ID,
		Email:     "buyer@example.com",
		Quantity:  2,
		ClientIP:  "10.0.0.1",
	})
	if err != nil {
		t.Fatalf("create hold: %v", err)
	}

	// 2m30s later the hold has lapsed.
	f.svc.now = func() time.Time { return base.Add(150 * time.Second) }

	_, err = f.svc.ConfirmOrder(ctx, order.ID)
	if !pkgerrors.HasCode(err, pkgerrors.CodeHoldExpired) {
		t.Fatalf("expected hold expired, got %v", err)
	}

	var reloaded models.Order
	if err := f.conn.Where("id = ?", order.ID).First(&reloaded).Error; err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if reloaded.Status != enums.OrderStatusExpired {
		t.Fatalf("expected expired, got %s", reloaded.Status)
	}

	events := eventsForOrder(t, f.conn, order.ID)
	if len(events) != 2 {
		t.Fatalf("expected hold + release events, got %d", len(events))
	}
	release := events[len(events)-1]
	if release.Type != enums.InventoryEventTypeHoldReleased || release.Delta != 2 {
		t.Fatalf("unexpected release event: %+v", release)
	}
	if !strings.Contains(string(release.Metadata), ReasonConfirmAfterExpiry) {
		t.Fatalf("release metadata should carry the reason, got %s", release.Metadata)
	}

	stock, err := inventory.NewAccounting(inventory.NewRepository(f.conn))
	if err != nil {
		t.Fatalf("construct accounting: %v", err)
	}
	live, err := stock.LiveStock(ctx, product)
	if err != nil {
		t.Fatalf("live stock: %v", err)
	}
	if live != 5 {
		t.Fatalf("expected stock restored to 5, got %d", live)
	}
}

func TestReleaseExpired(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return base }
	product := liveProduct(t, f, 5)

	order, err := f.svc.CreateHold(ctx, CreateHoldInput{
		ProductID: product.ID,
		Email:     "buyer@example.com",
		Quantity:  1,
		ClientIP:  "10.0.0.1",
	})
	if err != nil {
		t.Fatalf("create hold: %v", err)
	}

	// Not yet lapsed: no-op.
	if err := f.svc.ReleaseExpired(ctx, order.ID, ReasonBackgroundCleanup); err != nil {
		t.Fatalf("release before expiry should skip: %v", err)
	}
	if got := len(eventsForOrder(t, f.conn, order.ID)); got != 1 {
		t.Fatalf("skip must not append events, got %d", got)
	}

	f.svc.now = func() time.Time { return base.Add(3 * time.Minute) }
	if err := f.svc.ReleaseExpired(ctx, order.ID, ReasonBackgroundCleanup); err != nil {
		t.Fatalf("release: %v", err)
	}

	events := eventsForOrder(t, f.conn, order.ID)
	release := events[len(events)-1]
	if release.Type != enums.InventoryEventTypeHoldReleased || release.Delta != 1 {
		t.Fatalf("unexpected release event: %+v", release)
	}
	if !strings.Contains(string(release.Metadata), ReasonBackgroundCleanup) {
		t.Fatalf("release metadata should carry the reason, got %s", release.Metadata)
	}

	// Terminal orders are skipped on a second pass.
	if err := f.svc.ReleaseExpired(ctx, order.ID, ReasonBackgroundCleanup); err != nil {
		t.Fatalf("second release should skip: %v", err)
	}
	if got := len(eventsForOrder(t, f.conn, order.ID)); got != 2 {
		t.Fatalf("second release must not append events, got %d", got)
	}

	// Unknown orders are skipped, not errors.
	if err := f.svc.ReleaseExpired(ctx, uuid.New(), ReasonBackgroundCleanup); err != nil {
		t.Fatalf("unknown order should skip: %v", err)
	}
}

func TestExpiredPendingOrders(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return base }
	product := liveProduct(t, f, 10)

	var lapsed *models.Order
	for i := 0; i < 2; i++ {
		order, err := f.svc.CreateHold(ctx, CreateHoldInput{
			ProductID: product.ID,
			Email:     "buyer@example.com",
			Quantity:  1,
			ClientIP:  "10.0.0.1",
		})
		if err != nil {
			t.Fatalf("create hold %d: %v", i, err)
		}
		if i == 0 {
			lapsed = order
		}
		// Second hold is created later so only the first lapses below.
		f.svc.now = func() time.Time { return base.Add(90 * time.Second) }
	}

	f.svc.now = func() time.Time { return base.Add(150 * time.Second) }
	expired, err := f.svc.ExpiredPendingOrders(ctx, 100)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(expired) != 1 || expired[0].ID != lapsed.ID {
		t.Fatalf("expected only the lapsed hold, got %+v", expired)
	}
}

func TestGetOrderAndListByEmail(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	product := liveProduct(t, f, 5)

	order, err := f.svc.CreateHold(ctx, CreateHoldInput{
		ProductID: product.ID,
		Email:     "buyer@example.com",
		Quantity:  1,
		ClientIP:  "10.0.0.1",
	})
	if err != nil {
		t.Fatalf("create hold: %v", err)
	}

	loaded, err := f.svc.GetOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if loaded.Product == nil || loaded.Product.ID != product.ID {
		t.Fatalf("expected preloaded product on order")
	}

	if _, err := f.svc.GetOrder(ctx, uuid.New()); !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	orders, err := f.svc.ListOrdersByEmail(ctx, "buyer@example.com")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(orders) != 1 || orders[0].ID != order.ID {
		t.Fatalf("unexpected orders: %+v", orders)
	}

	if _, err := f.svc.ListOrdersByEmail(ctx, ""); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
