package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/marquezdaniela/reciclaje-municipal/api/responses"
	"github.com/marquezdaniela/reciclaje-municipal/internal/policy"
	pkgerrors "github.com/marquezdaniela/reciclaje-municipal/pkg/errors"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/logger"
)

type meResponse struct {
	UserID     uuid.UUID  `json:"user_id"`
	Username   string     `json:"username"`
	Role       string     `json:"role"`
	RoleLabel  string     `json:"role_label"`
	CitizenID  *uuid.UUID `json:"citizen_id,omitempty"`
	OperatorID *uuid.UUID `json:"operator_id,omitempty"`
	CanCreate  bool       `json:"can_create_requests"`
	IsStaff    bool       `json:"is_staff"`
}

// Me describes the resolved actor of the caller.
func Me() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := policy.ActorFrom(r.Context())
		resp := meResponse{
			UserID:    actor.UserID(),
			Username:  actor.Username(),
			Role:      actor.Kind().String(),
			RoleLabel: actor.Kind().Label(),
			CanCreate: policy.CanCreate(actor).Allowed(),
			IsStaff:   actor.IsStaff(),
		}
		if id, ok := actor.CitizenID(); ok {
			resp.CitizenID = &id
		}
		if id, ok := actor.OperatorID(); ok {
			resp.OperatorID = &id
		}
		responses.WriteSuccess(w, resp)
	}
}

// Messages drains the caller's queued notices. Each notice is returned once.
func Messages(notices Notices, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if notices == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "message queue unavailable"))
			return
		}
		msgs, err := notices.Drain(r.Context(), policy.ActorFrom(r.Context()).UserID())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "drain messages"))
			return
		}
		responses.WriteSuccess(w, msgs)
	}
}
