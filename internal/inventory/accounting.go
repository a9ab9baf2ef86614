package inventory

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/flashmart/flashmart-backend/pkg/db/models"
	pkgerrors "github.com/flashmart/flashmart-backend/pkg/errors"
)

// Accounting derives live stock from the event ledger. The figure is only a
// safe input to a stock-reducing decision while the caller holds the product
// lock; unlocked reads are point-in-time estimates for display.
type Accounting interface {
	WithTx(repo Repository) Accounting
	LiveStock(ctx context.Context, product *models.Product) (int, error)
	LiveStockByProduct(ctx context.Context, products []models.Product) (map[uuid.UUID]int, error)
}

type accounting struct {
	repo Repository
}

// NewAccounting wires stock accounting over the given event repository.
func NewAccounting(repo Repository) (Accounting, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	return &accounting{repo: repo}, nil
}

func (a *accounting) WithTx(repo Repository) Accounting {
	if repo == nil {
		return a
	}
	return &accounting{repo: repo}
}

// LiveStock is totalStock plus the signed sum of every ledger event for the
// product. A negative result means the admission check was bypassed somewhere;
// it is surfaced as an internal error rather than clamped.
func (a *accounting) LiveStock(ctx context.Context, product *models.Product) (int, error) {
	if product == nil {
		return 0, pkgerrors.New(pkgerrors.CodeInternal, "live stock requires a product")
	}
	delta, err := a.repo.SumDelta(ctx, product.ID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "aggregate inventory events")
	}
	live := product.TotalStock + delta
	if live < 0 {
		return 0, pkgerrors.New(pkgerrors.CodeInternal,
			fmt.Sprintf("negative live stock %d for product %s", live, product.ID))
	}
	return live, nil
}

// LiveStockByProduct computes the display-only live figure for many products
// in one aggregate query.
func (a *accounting) LiveStockByProduct(ctx context.Context, products []models.Product) (map[uuid.UUID]int, error) {
	ids := make([]uuid.UUID, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}
	deltas, err := a.repo.SumDeltaByProduct(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "aggregate inventory events")
	}
	live := make(map[uuid.UUID]int, len(products))
	for _, p := range products {
		live[p.ID] = p.TotalStock + deltas[p.ID]
	}
	return live, nil
}
