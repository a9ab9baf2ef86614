package controllers

import (
	"net/http"

	"github.com/flashmart/flashmart-backend/api/responses"
	adminsvc "github.com/flashmart/flashmart-backend/internal/admin"
	pkgerrors "github.com/flashmart/flashmart-backend/pkg/errors"
	"github.com/flashmart/flashmart-backend/pkg/logger"
)

// AdminMetrics handles GET /api/admin/metrics.
func AdminMetrics(svc adminsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "admin service unavailable"))
			return
		}

		dashboard, err := svc.Metrics(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dashboard)
	}
}
