package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/flashmart/flashmart-backend/api/responses"
	"github.com/flashmart/flashmart-backend/internal/holds"
	"github.com/flashmart/flashmart-backend/pkg/db/models"
	"github.com/flashmart/flashmart-backend/pkg/enums"
	pkgerrors "github.com/flashmart/flashmart-backend/pkg/errors"
	"github.com/flashmart/flashmart-backend/pkg/logger"
)

type orderResponse struct {
	ID            uuid.UUID         `json:"id"`
	ProductID     uuid.UUID         `json:"productId"`
	ProductName   string            `json:"productName,omitempty"`
	Description   string            `json:"description,omitempty"`
	PriceCents    int               `json:"priceCents,omitempty"`
	Quantity      int               `json:"quantity"`
	Status        enums.OrderStatus `json:"status"`
	HoldExpiresAt time.Time         `json:"holdExpiresAt"`
	CreatedAt     time.Time         `json:"createdAt"`
	CustomerEmail string            `json:"customerEmail,omitempty"`
}

func orderDetail(order *models.Order) orderResponse {
	resp := orderResponse{
		ID:            order.ID,
		ProductID:     order.ProductID,
		Quantity:      order.Quantity,
		Status:        order.Status,
		HoldExpiresAt: order.HoldExpiresAt,
		CreatedAt:     order.CreatedAt,
		CustomerEmail: order.CustomerEmail,
	}
	if order.Product != nil {
		resp.ProductName = order.Product.Name
		resp.Description = order.Product.Description
		resp.PriceCents = order.Product.PriceCents
	}
	return resp
}

func orderSummary(order models.Order) orderResponse {
	resp := orderResponse{
		ID:            order.ID,
		ProductID:     order.ProductID,
		Quantity:      order.Quantity,
		Status:        order.Status,
		HoldExpiresAt: order.HoldExpiresAt,
		CreatedAt:     order.CreatedAt,
	}
	if order.Product != nil {
		resp.ProductName = order.Product.Name
	}
	return resp
}

func orderIDFromPath(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id")
	}
	return id, nil
}

// ConfirmOrder handles POST /api/orders/{id}/confirm.
func ConfirmOrder(svc holds.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "hold service unavailable"))
			return
		}

		id, err := orderIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.ConfirmOrder(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, orderDetail(order))
	}
}

// GetOrder handles GET /api/orders/{id}.
func GetOrder(svc holds.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "hold service unavailable"))
			return
		}

		id, err := orderIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.GetOrder(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, orderDetail(order))
	}
}

// ListOrders handles GET /api/orders?email=.
func ListOrders(svc holds.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "hold service unavailable"))
			return
		}

		email := strings.TrimSpace(r.URL.Query().Get("email"))
		if email == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "email query param is required"))
			return
		}

		orders, err := svc.ListOrdersByEmail(r.Context(), email)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list := make([]orderResponse, 0, len(orders))
		for _, order := range orders {
			list = append(list, orderSummary(order))
		}
		responses.WriteSuccess(w, list)
	}
}
