package policy

import (
	"github.com/google/uuid"

	"github.com/marquezdaniela/reciclaje-municipal/pkg/db/models"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/enums"
	pkgerrors "github.com/marquezdaniela/reciclaje-municipal/pkg/errors"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/flash"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/types"
)

// Landing routes used by blocked decisions.
const (
	RouteHome     = "/"
	RouteRequests = "/api/v1/requests"
)

const (
	msgNoCitizenProfile = "you need a citizen profile to create requests"
	msgCompletedLocked  = "this request is already completed and can no longer be edited"
)

// Verdict is the outcome of a policy check.
type Verdict int

const (
	Allow Verdict = iota
	// Forbid is an explicit permission-denied outcome.
	Forbid
	// Block refuses the action without an error: the caller is sent to
	// Redirect with Message queued.
	Block
)

// Decision is returned by every policy check.
type Decision struct {
	Verdict  Verdict
	Reason   string
	Redirect string
	Message  types.Message
}

func allow() Decision { return Decision{Verdict: Allow} }

func forbid(reason string) Decision { return Decision{Verdict: Forbid, Reason: reason} }

func block(redirect string, msg types.Message) Decision {
	return Decision{Verdict: Block, Redirect: redirect, Message: msg}
}

func (d Decision) Allowed() bool { return d.Verdict == Allow }

// Err maps a Forbid verdict to a FORBIDDEN error. Allow and Block yield nil.
func (d Decision) Err() error {
	if d.Verdict != Forbid {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, d.Reason)
}

// CanView grants read access to staff, the assigned operator and the owner.
func CanView(a Actor, req models.PickupRequest) Decision {
	switch a.Kind() {
	case KindStaff:
		return allow()
	case KindOperator:
		if id, _ := a.OperatorID(); req.OperatorID != nil && *req.OperatorID == id {
			return allow()
		}
	case KindCitizen:
		if id, _ := a.CitizenID(); req.CitizenID == id {
			return allow()
		}
	}
	return forbid("you do not have permission to view this request")
}

// CanCreate lets only citizens file requests. Everyone else is sent home
// with an error notice.
func CanCreate(a Actor) Decision {
	if a.Kind() == KindCitizen {
		return allow()
	}
	return block(RouteHome, flash.New(flash.LevelError, msgNoCitizenProfile))
}

// Scope restricts a request listing.
type Scope struct {
	All        bool
	CitizenID  uuid.UUID
	OperatorID uuid.UUID
}

// Empty reports whether the scope matches nothing.
func (s Scope) Empty() bool {
	return !s.All && s.CitizenID == uuid.Nil && s.OperatorID == uuid.Nil
}

// ListScope returns the requests visible to a. Accounts with no profile
// get an empty scope rather than an error.
func ListScope(a Actor) Scope {
	switch a.Kind() {
	case KindStaff:
		return Scope{All: true}
	case KindOperator:
		id, _ := a.OperatorID()
		return Scope{OperatorID: id}
	case KindCitizen:
		id, _ := a.CitizenID()
		return Scope{CitizenID: id}
	default:
		return Scope{}
	}
}

// CanEdit applies the operator edit rules: only the assigned operator, and
// never once the request is COMPLETED.
func CanEdit(a Actor, req models.PickupRequest) Decision {
	id, ok := a.OperatorID()
	if !ok {
		return forbid("you do not have permission to access this page")
	}
	if req.OperatorID == nil || *req.OperatorID != id {
		return forbid("this request is not assigned to you")
	}
	if req.Status == enums.PickupStatusCompleted {
		return block(RouteRequests, flash.New(flash.LevelInfo, msgCompletedLocked))
	}
	return allow()
}

// CanAssign restricts bulk assignment to staff.
func CanAssign(a Actor) Decision {
	if a.IsStaff() {
		return allow()
	}
	return forbid("staff access required")
}
