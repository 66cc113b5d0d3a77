package controllers

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/marquezdaniela/reciclaje-municipal/api/responses"
	"github.com/marquezdaniela/reciclaje-municipal/api/validators"
	"github.com/marquezdaniela/reciclaje-municipal/internal/materials"
	"github.com/marquezdaniela/reciclaje-municipal/internal/operators"
	"github.com/marquezdaniela/reciclaje-municipal/internal/policy"
	"github.com/marquezdaniela/reciclaje-municipal/internal/requests"
	pkgerrors "github.com/marquezdaniela/reciclaje-municipal/pkg/errors"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/flash"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/logger"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// AdminBulkAssign hands the selected requests to one operator in a single
// transaction and reports how many were updated.
func AdminBulkAssign(svc requests.Service, notices Notices, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "requests service unavailable"))
			return
		}
		actor := policy.ActorFrom(r.Context())

		var body requests.BulkAssignInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.BulkAssign(r.Context(), actor, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		level := flash.LevelSuccess
		if result.OverCapacity {
			level = flash.LevelInfo
		}
		queueNotice(r.Context(), logg, notices, actor, flash.New(level, result.Message))
		responses.WriteSuccess(w, result)
	}
}

// AdminRequestList is the staff listing with filters.
func AdminRequestList(svc requests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "requests service unavailable"))
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", defaultPageSize, 1, maxPageSize)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filters, err := parseAdminFilters(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.AdminList(r.Context(), policy.ActorFrom(r.Context()), filters, limit, strings.TrimSpace(r.URL.Query().Get("cursor")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// AdminRequestExport streams the filtered listing as an XLSX workbook.
func AdminRequestExport(svc requests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "requests service unavailable"))
			return
		}
		filters, err := parseAdminFilters(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		// buffered so a failure can still be reported as JSON
		var buf bytes.Buffer
		if err := svc.Export(r.Context(), policy.ActorFrom(r.Context()), filters, &buf); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		name := fmt.Sprintf("pickup-requests-%s.xlsx", time.Now().UTC().Format("20060102"))
		w.Header().Set("Content-Type", xlsxContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
		w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
		w.WriteHeader(http.StatusOK)
		if _, err := buf.WriteTo(w); err != nil && logg != nil {
			logg.Error(r.Context(), "export.write_failed", err)
		}
	}
}

func parseAdminFilters(r *http.Request) (requests.AdminFilters, error) {
	var filters requests.AdminFilters

	status, err := parseStatusQuery(r)
	if err != nil {
		return filters, err
	}
	filters.Status = status

	operatorID, err := validators.ParseQueryUUID(r, "operator")
	if err != nil {
		return filters, err
	}
	filters.OperatorID = operatorID
	filters.Unassigned = validators.ParseQueryBool(r, "unassigned")
	if filters.Unassigned && filters.OperatorID != nil {
		return filters, pkgerrors.New(pkgerrors.CodeValidation, "operator and unassigned filters are exclusive")
	}

	if filters.From, err = validators.ParseQueryDate(r, "from"); err != nil {
		return filters, err
	}
	if filters.To, err = validators.ParseQueryDate(r, "to"); err != nil {
		return filters, err
	}
	if filters.From != nil && filters.To != nil && filters.To.Before(*filters.From) {
		return filters, pkgerrors.New(pkgerrors.CodeValidation, "to must not be before from")
	}

	filters.MaterialCode = strings.ToUpper(validators.SanitizeString(r.URL.Query().Get("material"), 4))
	filters.Search = validators.SanitizeString(r.URL.Query().Get("q"), 150)
	return filters, nil
}

// AdminOperatorList lists operators with their open workload.
func AdminOperatorList(svc operators.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "operators service unavailable"))
			return
		}
		list, err := svc.List(r.Context(), policy.ActorFrom(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func AdminOperatorCreate(svc operators.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "operators service unavailable"))
			return
		}
		var body operators.CreateOperatorRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		created, err := svc.Create(r.Context(), policy.ActorFrom(r.Context()), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, created)
	}
}

func AdminOperatorUpdate(svc operators.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "operators service unavailable"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "operatorId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body operators.UpdateOperatorRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		updated, err := svc.Update(r.Context(), policy.ActorFrom(r.Context()), id, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, updated)
	}
}

func AdminMaterialCreate(svc materials.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "materials service unavailable"))
			return
		}
		var body materials.CreateMaterialRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		created, err := svc.Create(r.Context(), policy.ActorFrom(r.Context()), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, created)
	}
}

// AdminMaterialDelete removes a material nobody references.
func AdminMaterialDelete(svc materials.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "materials service unavailable"))
			return
		}
		code := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "code")))
		if code == "" || len(code) > 4 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid material code"))
			return
		}
		if err := svc.Delete(r.Context(), policy.ActorFrom(r.Context()), code); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"deleted": code})
	}
}
