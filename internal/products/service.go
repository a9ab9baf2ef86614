package products

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/flashmart/flashmart-backend/internal/inventory"
	"github.com/flashmart/flashmart-backend/pkg/db/models"
	"github.com/flashmart/flashmart-backend/pkg/enums"
	pkgerrors "github.com/flashmart/flashmart-backend/pkg/errors"
)

// View is the display shape of a product. LiveStock here is a point-in-time
// estimate read without the product lock; only the hold path reads stock
// authoritatively.
type View struct {
	ID           uuid.UUID        `json:"id"`
	Name         string           `json:"name"`
	Description  string           `json:"description"`
	PriceCents   int              `json:"priceCents"`
	TotalStock   int              `json:"totalStock"`
	LiveStock    int              `json:"liveStock"`
	SoldPercent  int              `json:"soldPercent"`
	SaleStatus   enums.SaleStatus `json:"saleStatus"`
	SaleStartsAt time.Time        `json:"saleStartsAt"`
	SaleEndsAt   time.Time        `json:"saleEndsAt"`
}

// Service exposes the product read surface.
type Service interface {
	ListLive(ctx context.Context) ([]View, error)
	Get(ctx context.Context, id uuid.UUID) (*View, error)
}

type service struct {
	repo  Repository
	stock inventory.Accounting
	now   func() time.Time
}

// NewService wires the product read service.
func NewService(repo Repository, stock inventory.Accounting) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if stock == nil {
		return nil, fmt.Errorf("stock accounting required")
	}
	return &service{repo: repo, stock: stock, now: time.Now}, nil
}

func (s *service) ListLive(ctx context.Context) ([]View, error) {
	now := s.now()
	list, err := s.repo.ListLiveAt(ctx, now)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list live products")
	}
	if len(list) == 0 {
		return []View{}, nil
	}
	live, err := s.stock.LiveStockByProduct(ctx, list)
	if err != nil {
		return nil, err
	}
	views := make([]View, 0, len(list))
	for _, product := range list {
		views = append(views, buildView(product, live[product.ID], now))
	}
	return views, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*View, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	live, err := s.stock.LiveStock(ctx, product)
	if err != nil {
		return nil, err
	}
	view := buildView(*product, live, s.now())
	return &view, nil
}

func buildView(product models.Product, liveStock int, now time.Time) View {
	return View{
		ID:           product.ID,
		Name:         product.Name,
		Description:  product.Description,
		PriceCents:   product.PriceCents,
		TotalStock:   product.TotalStock,
		LiveStock:    liveStock,
		SoldPercent:  soldPercent(product.TotalStock, liveStock),
		SaleStatus:   enums.SaleStatusAt(product.SaleStartsAt, product.SaleEndsAt, now),
		SaleStartsAt: product.SaleStartsAt,
		SaleEndsAt:   product.SaleEndsAt,
	}
}

func soldPercent(totalStock, liveStock int) int {
	if totalStock <= 0 {
		return 0
	}
	sold := totalStock - liveStock
	return int(math.Round(float64(sold) / float64(totalStock) * 100))
}
