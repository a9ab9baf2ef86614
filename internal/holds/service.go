package holds

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/flashmart/flashmart-backend/internal/counters"
	"github.com/flashmart/flashmart-backend/internal/inventory"
	"github.com/flashmart/flashmart-backend/internal/lock"
	"github.com/flashmart/flashmart-backend/pkg/db/models"
	"github.com/flashmart/flashmart-backend/pkg/enums"
	pkgerrors "github.com/flashmart/flashmart-backend/pkg/errors"
	"github.com/flashmart/flashmart-backend/pkg/logger"
)

// Release reasons recorded on hold_released events.
const (
	ReasonConfirmAfterExpiry = "confirm_after_expiry"
	ReasonBackgroundCleanup  = "background_cleanup"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type lockManager interface {
	Acquire(ctx context.Context, name string) (string, error)
	Release(ctx context.Context, name, token string) error
}

type throttleGuard interface {
	Check(ctx context.Context, email, clientIP string) error
}

type oversellCounter interface {
	Increment(ctx context.Context, name string) error
}

// ProductSource loads products for the hold admission path.
type ProductSource interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

// CreateHoldInput captures a customer's request to reserve stock.
type CreateHoldInput struct {
	ProductID uuid.UUID
	Email     string
	Quantity  int
	ClientIP  string
}

// Service owns the hold lifecycle: admission, confirmation, and release of
// lapsed holds. Every stock-reducing decision happens under the product lock;
// every status transition happens under the order lock.
type Service interface {
	CreateHold(ctx context.Context, input CreateHoldInput) (*models.Order, error)
	ConfirmOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	ReleaseExpired(ctx context.Context, orderID uuid.UUID, reason string) error
	ExpiredPendingOrders(ctx context.Context, limit int) ([]models.Order, error)
	GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	ListOrdersByEmail(ctx context.Context, email string) ([]models.Order, error)
}

type service struct {
	repo     Repository
	events   inventory.Repository
	stock    inventory.Accounting
	products ProductSource
	locks    lockManager
	guard    throttleGuard
	counters oversellCounter
	tx       txRunner
	logg     *logger.Logger
	holdTTL  time.Duration
	now      func() time.Time
}

// NewService wires the hold lifecycle service.
func NewService(
	repo Repository,
	events inventory.Repository,
	stock inventory.Accounting,
	products ProductSource,
	locks lockManager,
	guard throttleGuard,
	ctr oversellCounter,
	tx txRunner,
	logg *logger.Logger,
	holdTTL time.Duration,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("holds repository required")
	}
	if events == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if stock == nil {
		return nil, fmt.Errorf("stock accounting required")
	}
	if products == nil {
		return nil, fmt.Errorf("product source required")
	}
	if locks == nil {
		return nil, fmt.Errorf("lock manager required")
	}
	if guard == nil {
		return nil, fmt.Errorf("throttle guard required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if holdTTL <= 0 {
		return nil, fmt.Errorf("hold ttl must be positive")
	}
	return &service{
		repo:     repo,
		events:   events,
		stock:    stock,
		products: products,
		locks:    locks,
		guard:    guard,
		counters: ctr,
		tx:       tx,
		logg:     logg,
		holdTTL:  holdTTL,
		now:      time.Now,
	}, nil
}

// CreateHold admits a stock hold. The order of checks is fixed: throttle
// first, then the product lock, then the sale window, then live stock. Checks
// that reduce stock only run while the product lock is held, and the order row
// plus its hold_created event commit in one transaction.
func (s *service) CreateHold(ctx context.Context, input CreateHoldInput) (*models.Order, error) {
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if input.Email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email required")
	}
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	if err := s.guard.Check(ctx, input.Email, input.ClientIP); err != nil {
		return nil, err
	}

	lockName := lockNameForProduct(input.ProductID)
	token, err := s.locks.Acquire(ctx, lockName)
	if err != nil {
		return nil, err
	}
	defer s.release(ctx, lockName, token)

	now := s.now()

	product, err := s.products.FindByID(ctx, input.ProductID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if !product.SaleActiveAt(now) {
		return nil, pkgerrors.New(pkgerrors.CodeSaleNotActive, "sale not active")
	}

	live, err := s.stock.LiveStock(ctx, product)
	if err != nil {
		return nil, err
	}
	if live < input.Quantity {
		s.recordOversellBlocked(ctx, product.ID, live, input.Quantity)
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock")
	}

	order := &models.Order{
		ID:            uuid.New(),
		ProductID:     product.ID,
		CustomerEmail: input.Email,
		Quantity:      input.Quantity,
		Status:        enums.OrderStatusPending,
		HoldExpiresAt: now.Add(s.holdTTL),
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create hold order")
		}
		event := &models.InventoryEvent{
			ID:        uuid.New(),
			ProductID: product.ID,
			OrderID:   &order.ID,
			Type:      enums.InventoryEventTypeHoldCreated,
			Delta:     -input.Quantity,
			Metadata:  eventMetadata(order.ID, ""),
		}
		if err := s.events.WithTx(tx).Create(ctx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record hold event")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"product_id": product.ID.String(),
			"order_id":   order.ID.String(),
			"quantity":   input.Quantity,
			"expires_at": order.HoldExpiresAt.UTC().Format(time.RFC3339),
		})
		s.logg.Info(logCtx, "holds.created")
	}
	order.Product = product
	return order, nil
}

// ConfirmOrder finalizes a pending hold. A hold found lapsed at confirmation
// time is expired and released on the spot; the released stock commits even
// though the caller sees an error.
func (s *service) ConfirmOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	lockName := lockNameForOrder(orderID)
	token, err := s.locks.Acquire(ctx, lockName)
	if err != nil {
		return nil, err
	}
	defer s.release(ctx, lockName, token)

	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.Status != enums.OrderStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeNotPending, "order not pending")
	}

	now := s.now()
	if order.HoldExpiredAt(now) {
		if err := s.expireHold(ctx, order, ReasonConfirmAfterExpiry); err != nil {
			return nil, err
		}
		return nil, pkgerrors.New(pkgerrors.CodeHoldExpired, "hold expired, order marked expired")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).TransitionStatus(ctx, order.ID, enums.OrderStatusPending, enums.OrderStatusConfirmed); err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotPending, "order not pending")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "confirm order")
		}
		event := &models.InventoryEvent{
			ID:        uuid.New(),
			ProductID: order.ProductID,
			OrderID:   &order.ID,
			Type:      enums.InventoryEventTypeOrderConfirmed,
			Delta:     0,
			Metadata:  eventMetadata(order.ID, ""),
		}
		if err := s.events.WithTx(tx).Create(ctx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record confirmation event")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithOrderID(ctx, order.ID.String()), "holds.confirmed")
	}
	order.Status = enums.OrderStatusConfirmed
	return order, nil
}

// ReleaseExpired expires a lapsed pending hold and returns its stock. The
// order is re-loaded under its lock before anything changes; a hold that was
// confirmed, already expired, or is no longer lapsed is skipped without error.
func (s *service) ReleaseExpired(ctx context.Context, orderID uuid.UUID, reason string) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if reason == "" {
		reason = ReasonBackgroundCleanup
	}

	lockName := lockNameForOrder(orderID)
	token, err := s.locks.Acquire(ctx, lockName)
	if err != nil {
		return err
	}
	defer s.release(ctx, lockName, token)

	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.Status != enums.OrderStatusPending || !order.HoldExpiredAt(s.now()) {
		return nil
	}
	return s.expireHold(ctx, order, reason)
}

// ExpiredPendingOrders lists pending holds whose expiry has lapsed, oldest
// first. The list is a candidate set only; callers must re-check each order
// under its lock before acting on it.
func (s *service) ExpiredPendingOrders(ctx context.Context, limit int) ([]models.Order, error) {
	orders, err := s.repo.FindPendingExpiredBefore(ctx, s.now(), limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "scan expired holds")
	}
	return orders, nil
}

func (s *service) GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) ListOrdersByEmail(ctx context.Context, email string) ([]models.Order, error) {
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email required")
	}
	orders, err := s.repo.ListByEmail(ctx, email)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return orders, nil
}

func (s *service) expireHold(ctx context.Context, order *models.Order, reason string) error {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).TransitionStatus(ctx, order.ID, enums.OrderStatusPending, enums.OrderStatusExpired); err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "expire order")
		}
		event := &models.InventoryEvent{
			ID:        uuid.New(),
			ProductID: order.ProductID,
			OrderID:   &order.ID,
			Type:      enums.InventoryEventTypeHoldReleased,
			Delta:     order.Quantity,
			Metadata:  eventMetadata(order.ID, reason),
		}
		if err := s.events.WithTx(tx).Create(ctx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record release event")
		}
		return nil
	})
	if err != nil {
		return err
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"order_id": order.ID.String(),
			"reason":   reason,
		})
		s.logg.Info(logCtx, "holds.expired")
	}
	return nil
}

func (s *service) release(ctx context.Context, name, token string) {
	if err := s.locks.Release(ctx, name, token); err != nil && s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"lock":  name,
			"error": err.Error(),
		})
		s.logg.Warn(logCtx, "holds.lock.release_failed")
	}
}

func (s *service) recordOversellBlocked(ctx context.Context, productID uuid.UUID, live, requested int) {
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"product_id": productID.String(),
			"live_stock": live,
			"requested":  requested,
		})
		s.logg.Warn(logCtx, "holds.oversell.blocked")
	}
	if s.counters == nil {
		return
	}
	if err := s.counters.Increment(ctx, counters.OversellAttemptsBlocked); err != nil && s.logg != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "holds.oversell.counter_failed")
	}
}

func lockNameForProduct(id uuid.UUID) string {
	return lock.ProductLockName(id.String())
}

func lockNameForOrder(id uuid.UUID) string {
	return lock.OrderLockName(id.String())
}

func eventMetadata(orderID uuid.UUID, reason string) json.RawMessage {
	payload := map[string]string{"order_id": orderID.String()}
	if reason != "" {
		payload["reason"] = reason
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return raw
}
