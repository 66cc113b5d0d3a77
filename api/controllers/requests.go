package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/marquezdaniela/reciclaje-municipal/api/responses"
	"github.com/marquezdaniela/reciclaje-municipal/api/validators"
	"github.com/marquezdaniela/reciclaje-municipal/internal/policy"
	"github.com/marquezdaniela/reciclaje-municipal/internal/requests"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/enums"
	pkgerrors "github.com/marquezdaniela/reciclaje-municipal/pkg/errors"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/flash"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/logger"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// RequestCreate files a pickup request for the calling citizen. Actors
// without a citizen profile are redirected home with an error notice.
func RequestCreate(svc requests.Service, notices Notices, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "requests service unavailable"))
			return
		}
		actor := policy.ActorFrom(r.Context())
		if decision := policy.CanCreate(actor); !decision.Allowed() {
			writeBlocked(r.Context(), logg, w, notices, actor, &decision)
			return
		}

		var body requests.CreateRequestInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		created, decision, err := svc.Create(r.Context(), actor, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if decision != nil {
			writeBlocked(r.Context(), logg, w, notices, actor, decision)
			return
		}

		queueNotice(r.Context(), logg, notices, actor, flash.New(flash.LevelSuccess, requests.MsgCreated))
		w.Header().Set("Location", policy.RouteRequests+"/"+formatID(created.ID))
		responses.WriteSuccessStatus(w, http.StatusCreated, created)
	}
}

// RequestList returns the requests visible to the caller.
func RequestList(svc requests.Service, logg *logger.Logger) http.HandlerFunc {
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
		status, err := parseStatusQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.List(r.Context(), policy.ActorFrom(r.Context()), requests.ListParams{
			Status: status,
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// RequestDetail shows one request to staff, its owner or its operator.
func RequestDetail(svc requests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "requests service unavailable"))
			return
		}
		id, err := validators.ParseIDParam(r, "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dto, err := svc.Get(r.Context(), policy.ActorFrom(r.Context()), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}

// RequestEditForm returns the request and the statuses the assigned
// operator may move it to. A completed request redirects to the list.
func RequestEditForm(svc requests.Service, notices Notices, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "requests service unavailable"))
			return
		}
		id, err := validators.ParseIDParam(r, "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actor := policy.ActorFrom(r.Context())

		form, decision, err := svc.EditForm(r.Context(), actor, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if decision != nil {
			writeBlocked(r.Context(), logg, w, notices, actor, decision)
			return
		}
		responses.WriteSuccess(w, form)
	}
}

// RequestOperatorUpdate applies the assigned operator's status and
// comment change.
func RequestOperatorUpdate(svc requests.Service, notices Notices, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "requests service unavailable"))
			return
		}
		id, err := validators.ParseIDParam(r, "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actor := policy.ActorFrom(r.Context())

		// access and the completed lock are settled before the body is read
		if _, decision, err := svc.EditForm(r.Context(), actor, id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		} else if decision != nil {
			writeBlocked(r.Context(), logg, w, notices, actor, decision)
			return
		}

		var body requests.OperatorUpdateInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		body.Comments = validators.SanitizeString(body.Comments, 2000)

		updated, decision, err := svc.OperatorUpdate(r.Context(), actor, id, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if decision != nil {
			writeBlocked(r.Context(), logg, w, notices, actor, decision)
			return
		}

		queueNotice(r.Context(), logg, notices, actor, flash.New(flash.LevelSuccess, requests.MsgUpdated))
		responses.WriteSuccess(w, updated)
	}
}

func parseStatusQuery(r *http.Request) (*enums.PickupStatus, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("status"))
	if raw == "" {
		return nil, nil
	}
	status, err := enums.ParsePickupStatus(raw)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter").WithDetails(map[string]any{"field": "status"})
	}
	return &status, nil
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
