package policy

import (
	"context"

	"github.com/google/uuid"

	"github.com/marquezdaniela/reciclaje-municipal/pkg/outbox"
)

// Kind tags which variant an Actor holds.
type Kind int

const (
	KindAnonymous Kind = iota
	// KindMember is an authenticated account with neither profile.
	KindMember
	KindCitizen
	KindOperator
	KindStaff
)

func (k Kind) String() string {
	switch k {
	case KindMember:
		return "member"
	case KindCitizen:
		return "citizen"
	case KindOperator:
		return "operator"
	case KindStaff:
		return "staff"
	default:
		return "anonymous"
	}
}

// Label is the role name shown next to an account in staff listings.
func (k Kind) Label() string {
	switch k {
	case KindCitizen:
		return "Citizen"
	case KindOperator:
		return "Operator"
	case KindStaff:
		return "Staff"
	case KindMember:
		return "Member"
	default:
		return "Anonymous"
	}
}

// Actor is who is performing the current request. It is resolved once per
// request and then only read. The profile id is set for the citizen and
// operator variants only.
type Actor struct {
	kind      Kind
	userID    uuid.UUID
	profileID uuid.UUID
	username  string
}

func Anonymous() Actor {
	return Actor{kind: KindAnonymous}
}

func Member(userID uuid.UUID, username string) Actor {
	return Actor{kind: KindMember, userID: userID, username: username}
}

func Citizen(userID, citizenID uuid.UUID, username string) Actor {
	return Actor{kind: KindCitizen, userID: userID, profileID: citizenID, username: username}
}

func Operator(userID, operatorID uuid.UUID, username string) Actor {
	return Actor{kind: KindOperator, userID: userID, profileID: operatorID, username: username}
}

func Staff(userID uuid.UUID, username string) Actor {
	return Actor{kind: KindStaff, userID: userID, username: username}
}

func (a Actor) Kind() Kind { return a.kind }
func (a Actor) UserID() uuid.UUID { return a.userID }
func (a Actor) Username() string { return a.username }
func (a Actor) IsAuthenticated() bool { return a.kind != KindAnonymous }
func (a Actor) IsStaff() bool { return a.kind == KindStaff }

// CitizenID returns the citizen profile id when the actor is a citizen.
func (a Actor) CitizenID() (uuid.UUID, bool) {
	if a.kind != KindCitizen {
		return uuid.Nil, false
	}
	return a.profileID, true
}

// OperatorID returns the operator profile id when the actor is an operator.
func (a Actor) OperatorID() (uuid.UUID, bool) {
	if a.kind != KindOperator {
		return uuid.Nil, false
	}
	return a.profileID, true
}

// Ref identifies the actor on emitted domain events.
func (a Actor) Ref() *outbox.ActorRef {
	if !a.IsAuthenticated() {
		return nil
	}
	return &outbox.ActorRef{UserID: a.userID, Kind: a.kind.String()}
}

type ctxKey struct{}

// WithActor stores a resolved actor on ctx.
func WithActor(ctx context.Context, a Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxKey{}, a)
}

// ActorFrom returns the actor stored on ctx, or Anonymous.
func ActorFrom(ctx context.Context) Actor {
	if ctx == nil {
		return Anonymous()
	}
	if a, ok := ctx.Value(ctxKey{}).(Actor); ok {
		return a
	}
	return Anonymous()
}
