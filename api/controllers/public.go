package controllers

import (
	"context"
	"net/http"

	"github.com/marquezdaniela/reciclaje-municipal/api/responses"
	"github.com/marquezdaniela/reciclaje-municipal/internal/materials"
	"github.com/marquezdaniela/reciclaje-municipal/internal/stats"
	pkgerrors "github.com/marquezdaniela/reciclaje-municipal/pkg/errors"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/logger"
)

// DashboardSource serves the metrics page.
type DashboardSource interface {
	Dashboard(ctx context.Context) (*stats.Dashboard, error)
}

func MaterialList(svc materials.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "materials service unavailable"))
			return
		}
		list, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// MetricsDashboard returns the request statistics page.
func MetricsDashboard(src DashboardSource, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if src == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stats service unavailable"))
			return
		}
		dashboard, err := src.Dashboard(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dashboard)
	}
}
