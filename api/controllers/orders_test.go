package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	pkgerrors "github.com/flashmart/flashmart-backend/pkg/errors"
)

func requestWithOrderID(method, target, orderID string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("id", orderID)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}

func TestConfirmOrderController(t *testing.T) {
	order := pendingOrder()
	svc := &stubHoldService{order: order}

	req := requestWithOrderID(http.MethodPost, "/api/orders/"+order.ID.String()+"/confirm", order.ID.String())
	rec := httptest.NewRecorder()
	ConfirmOrder(svc, testLogger()).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var envelope struct {
		Data orderResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.ID != order.ID {
		t.Fatalf("unexpected order id: %s", envelope.Data.ID)
	}
}

func TestConfirmOrderControllerInvalidID(t *testing.T) {
	svc := &stubHoldService{order: pendingOrder()}

	req := requestWithOrderID(http.MethodPost, "/api/orders/nope/confirm", "nope")
	rec := httptest.NewRecorder()
	ConfirmOrder(svc, testLogger()).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestConfirmOrderControllerErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "not found", err: pkgerrors.New(pkgerrors.CodeNotFound, "order not found"), status: http.StatusNotFound, code: "NOT_FOUND"},
		{name: "not pending", err: pkgerrors.New(pkgerrors.CodeNotPending, "order is not pending"), status: http.StatusBadRequest, code: "ORDER_NOT_PENDING"},
		{name: "hold expired", err: pkgerrors.New(pkgerrors.CodeHoldExpired, "hold expired"), status: http.StatusBadRequest, code: "HOLD_EXPIRED"},
		{name: "lock busy", err: pkgerrors.New(pkgerrors.CodeLockNotAcquired, "lock busy"), status: http.StatusTooManyRequests, code: "LOCK_NOT_ACQUIRED"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubHoldService{confirmErr: tc.err}
			orderID := uuid.NewString()

			req := requestWithOrderID(http.MethodPost, "/api/orders/"+orderID+"/confirm", orderID)
			rec := httptest.NewRecorder()
			ConfirmOrder(svc, testLogger()).ServeHTTP(rec, req)

			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, rec.Code, rec.Body.String())
			}
			var envelope struct {
				Error struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if envelope.Error.Code != tc.code {
				t.Fatalf("expected code %s, got %s", tc.code, envelope.Error.Code)
			}
		})
	}
}

func TestGetOrderController(t *testing.T) {
	order := pendingOrder()
	svc := &stubHoldService{order: order}

	req := requestWithOrderID(http.MethodGet, "/api/orders/"+order.ID.String(), order.ID.String())
	rec := httptest.NewRecorder()
	GetOrder(svc, testLogger()).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	t.Run("unknown order", func(t *testing.T) {
		empty := &stubHoldService{}
		orderID := uuid.NewString()

		req := requestWithOrderID(http.MethodGet, "/api/orders/"+orderID, orderID)
		rec := httptest.NewRecorder()
		GetOrder(empty, testLogger()).ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
		}
	})
}

func TestListOrdersController(t *testing.T) {
	order := pendingOrder()
	svc := &stubHoldService{order: order}

	req := httptest.NewRequest(http.MethodGet, "/api/orders?email=buyer@example.com", nil)
	rec := httptest.NewRecorder()
	ListOrders(svc, testLogger()).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var envelope struct {
		Data []orderResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(envelope.Data) != 1 {
		t.Fatalf("expected 1 order, got %d", len(envelope.Data))
	}
	if envelope.Data[0].CustomerEmail != "" {
		t.Fatalf("expected summary view without email, got %q", envelope.Data[0].CustomerEmail)
	}

	t.Run("missing email", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
		rec := httptest.NewRecorder()
		ListOrders(svc, testLogger()).ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
		}
	})
}
