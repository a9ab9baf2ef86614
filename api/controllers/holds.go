package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/flashmart/flashmart-backend/api/middleware"
	"github.com/flashmart/flashmart-backend/api/responses"
	"github.com/flashmart/flashmart-backend/api/validators"
	"github.com/flashmart/flashmart-backend/internal/holds"
	pkgerrors "github.com/flashmart/flashmart-backend/pkg/errors"
	"github.com/flashmart/flashmart-backend/pkg/logger"
)

type createHoldRequest struct {
	ProductID string `json:"productId" validate:"required,uuid"`
	Email     string `json:"email" validate:"required,email"`
	Qty       int    `json:"qty" validate:"required,min=1"`
}

type createHoldResponse struct {
	OrderID       uuid.UUID `json:"orderId"`
	HoldExpiresAt time.Time `json:"holdExpiresAt"`
}

// CreateHold handles POST /api/holds.
func CreateHold(svc holds.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "hold service unavailable"))
			return
		}

		var payload createHoldRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		productID, err := uuid.Parse(payload.ProductID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id"))
			return
		}

		order, err := svc.CreateHold(r.Context(), holds.CreateHoldInput{
			ProductID: productID,
			Email:     payload.Email,
			Quantity:  payload.Qty,
			ClientIP:  middleware.ClientIP(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, createHoldResponse{
			OrderID:       order.ID,
			HoldExpiresAt: order.HoldExpiresAt,
		})
	}
}
