package admin

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/flashmart/flashmart-backend/internal/counters"
	"github.com/flashmart/flashmart-backend/internal/inventory"
	"github.com/flashmart/flashmart-backend/internal/products"
	"github.com/flashmart/flashmart-backend/pkg/db/models"
	"github.com/flashmart/flashmart-backend/pkg/enums"
	pkgerrors "github.com/flashmart/flashmart-backend/pkg/errors"
)

const (
	chartWindow = time.Hour
	chartBucket = 5 * time.Minute
)

type counterReader interface {
	Snapshot(ctx context.Context, names ...string) (map[string]int64, error)
}

// ProductRow is one line of the per-product dashboard table.
type ProductRow struct {
	ProductID  uuid.UUID        `json:"productId"`
	Name       string           `json:"name"`
	TotalStock int              `json:"totalStock"`
	LiveStock  int              `json:"liveStock"`
	Pending    int64            `json:"pending"`
	Confirmed  int64            `json:"confirmed"`
	Expired    int64            `json:"expired"`
	SaleStatus enums.SaleStatus `json:"saleStatus"`
}

// ChartBucket aggregates sold vs expired quantity for one 5-minute slot.
type ChartBucket struct {
	Bucket  time.Time `json:"bucket"`
	Sold    int       `json:"sold"`
	Expired int       `json:"expired"`
}

// Dashboard is the full admin metrics payload.
type Dashboard struct {
	TotalHoldsCreated       int64         `json:"totalHoldsCreated"`
	HoldsExpired            int64         `json:"holdsExpired"`
	ConfirmedOrders         int64         `json:"confirmedOrders"`
	OversellAttemptsBlocked int64         `json:"oversellAttemptsBlocked"`
	ThrottleBlocked         int64         `json:"throttleBlocked"`
	StockPerProduct         []ProductRow  `json:"stockPerProduct"`
	Chart                   []ChartBucket `json:"chart"`
}

// Service builds the admin dashboard from the ledger, the orders table, and
// the Redis counters.
type Service interface {
	Metrics(ctx context.Context) (*Dashboard, error)
}

type service struct {
	repo     Repository
	products products.Repository
	events   inventory.Repository
	readers  counterReader
	now      func() time.Time
}

// NewService wires the admin metrics service.
func NewService(repo Repository, productRepo products.Repository, events inventory.Repository, readers counterReader) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("admin repository required")
	}
	if productRepo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if events == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if readers == nil {
		return nil, fmt.Errorf("counter reader required")
	}
	return &service{
		repo:     repo,
		products: productRepo,
		events:   events,
		readers:  readers,
		now:      time.Now,
	}, nil
}

func (s *service) Metrics(ctx context.Context) (*Dashboard, error) {
	now := s.now()

	holdsCreated, err := s.events.CountByType(ctx, enums.InventoryEventTypeHoldCreated)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count holds created")
	}

	statusCounts, err := s.repo.OrderStatusCountsByProduct(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "aggregate order statuses")
	}

	snapshot, err := s.readers.Snapshot(ctx, counters.OversellAttemptsBlocked, counters.ThrottleBlocked)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read counters")
	}

	rows, err := s.buildProductRows(ctx, statusCounts, now)
	if err != nil {
		return nil, err
	}

	chart, err := s.buildChart(ctx, now)
	if err != nil {
		return nil, err
	}

	dashboard := &Dashboard{
		TotalHoldsCreated:       holdsCreated,
		OversellAttemptsBlocked: snapshot[counters.OversellAttemptsBlocked],
		ThrottleBlocked:         snapshot[counters.ThrottleBlocked],
		StockPerProduct:         rows,
		Chart:                   chart,
	}
	for _, counts := range statusCounts {
		dashboard.HoldsExpired += counts.Expired
		dashboard.ConfirmedOrders += counts.Confirmed
	}
	return dashboard, nil
}

func (s *service) buildProductRows(ctx context.Context, statusCounts map[uuid.UUID]StatusCounts, now time.Time) ([]ProductRow, error) {
	list, err := s.products.ListAll(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	if len(list) == 0 {
		return []ProductRow{}, nil
	}

	deltas, err := s.events.SumDeltaByProduct(ctx, productIDs(list))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "aggregate inventory events")
	}

	rows := make([]ProductRow, 0, len(list))
	for _, product := range list {
		counts := statusCounts[product.ID]
		rows = append(rows, ProductRow{
			ProductID:  product.ID,
			Name:       product.Name,
			TotalStock: product.TotalStock,
			LiveStock:  product.TotalStock + deltas[product.ID],
			Pending:    counts.Pending,
			Confirmed:  counts.Confirmed,
			Expired:    counts.Expired,
			SaleStatus: enums.SaleStatusAt(product.SaleStartsAt, product.SaleEndsAt, now),
		})
	}
	return rows, nil
}

func (s *service) buildChart(ctx context.Context, now time.Time) ([]ChartBucket, error) {
	outcomes, err := s.repo.RecentOutcomes(ctx, now.Add(-chartWindow))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load recent outcomes")
	}

	byBucket := make(map[time.Time]*ChartBucket)
	for _, outcome := range outcomes {
		start := outcome.CreatedAt.UTC().Truncate(chartBucket)
		bucket, ok := byBucket[start]
		if !ok {
			bucket = &ChartBucket{Bucket: start}
			byBucket[start] = bucket
		}
		switch outcome.Status {
		case enums.OrderStatusConfirmed:
			bucket.Sold += outcome.Quantity
		case enums.OrderStatusExpired:
			bucket.Expired += outcome.Quantity
		}
	}

	chart := make([]ChartBucket, 0, len(byBucket))
	for _, bucket := range byBucket {
		chart = append(chart, *bucket)
	}
	sort.Slice(chart, func(i, j int) bool { return chart[i].Bucket.Before(chart[j].Bucket) })
	return chart, nil
}

func productIDs(list []models.Product) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(list))
	for _, product := range list {
		ids = append(ids, product.ID)
	}
	return ids
}
