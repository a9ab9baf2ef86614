package sweeper

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/flashmart/flashmart-backend/internal/holds"
	"github.com/flashmart/flashmart-backend/pkg/db/models"
	pkgerrors "github.com/flashmart/flashmart-backend/pkg/errors"
	"github.com/flashmart/flashmart-backend/pkg/logger"
)

const sweepBatchSize = 500

type holdReleaser interface {
	ExpiredPendingOrders(ctx context.Context, limit int) ([]models.Order, error)
	ReleaseExpired(ctx context.Context, orderID uuid.UUID, reason string) error
}

// HoldExpiryJobParams configure the lapsed-hold sweep.
type HoldExpiryJobParams struct {
	Logger *logger.Logger
	Holds  holdReleaser
}

// NewHoldExpiryJob builds the job that expires lapsed holds and returns their
// stock to the pool.
func NewHoldExpiryJob(params HoldExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Holds == nil {
		return nil, fmt.Errorf("hold service required")
	}
	return &holdExpiryJob{
		logg:  params.Logger,
		holds: params.Holds,
	}, nil
}

type holdExpiryJob struct {
	logg  *logger.Logger
	holds holdReleaser
}

func (j *holdExpiryJob) Name() string { return "hold-expiry" }

// Run scans for lapsed pending holds and releases them one order at a time.
// A failure on one order never stops the rest of the batch; lock contention
// means another instance owns that order and is not an error.
func (j *holdExpiryJob) Run(ctx context.Context) error {
	orders, err := j.holds.ExpiredPendingOrders(ctx, sweepBatchSize)
	if err != nil {
		return fmt.Errorf("scan lapsed holds: %w", err)
	}

	var errs []error
	released, contended := 0, 0
	for _, order := range orders {
		err := j.holds.ReleaseExpired(ctx, order.ID, holds.ReasonBackgroundCleanup)
		switch {
		case err == nil:
			released++
		case pkgerrors.HasCode(err, pkgerrors.CodeLockNotAcquired):
			contended++
		default:
			logCtx := j.logg.WithOrderID(ctx, order.ID.String())
			j.logg.Error(logCtx, "release lapsed hold failed", err)
			errs = append(errs, fmt.Errorf("order %s: %w", order.ID, err))
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"candidates": len(orders),
		"released":   released,
		"contended":  contended,
		"failed":     len(errs),
	})
	j.logg.Info(logCtx, "hold expiry sweep complete")
	return multierr.Combine(errs...)
}
