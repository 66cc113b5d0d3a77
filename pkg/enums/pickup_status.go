package enums

import (
	"fmt"
	"strings"
)

// PickupStatus tracks the lifecycle of a pickup request.
type PickupStatus string

const (
	PickupStatusPending   PickupStatus = "PENDING"
	PickupStatusEnRoute   PickupStatus = "EN_ROUTE"
	PickupStatusCompleted PickupStatus = "COMPLETED"
	PickupStatusCancelled PickupStatus = "CANCELLED"
)

var validPickupStatuses = []PickupStatus{
	PickupStatusPending,
	PickupStatusEnRoute,
	PickupStatusCompleted,
	PickupStatusCancelled,
}

// pickupTransitions lists every move the lifecycle allows. Staying in the
// same state is handled separately so comment-only edits stay valid.
var pickupTransitions = map[PickupStatus][]PickupStatus{
	PickupStatusPending: {PickupStatusEnRoute},
	PickupStatusEnRoute: {PickupStatusEnRoute, PickupStatusCompleted, PickupStatusCancelled},
}

// PickupStatuses returns the known statuses in lifecycle order.
func PickupStatuses() []PickupStatus {
	out := make([]PickupStatus, len(validPickupStatuses))
	copy(out, validPickupStatuses)
	return out
}

// String implements fmt.Stringer.
func (s PickupStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known PickupStatus.
func (s PickupStatus) IsValid() bool {
	for _, candidate := range validPickupStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further lifecycle move is possible.
func (s PickupStatus) IsTerminal() bool {
	return s == PickupStatusCompleted || s == PickupStatusCancelled
}

// CanTransitionTo reports whether the lifecycle allows moving from s to next.
func (s PickupStatus) CanTransitionTo(next PickupStatus) bool {
	if !next.IsValid() {
		return false
	}
	if s == next {
		return true
	}
	for _, candidate := range pickupTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// Label is the human readable name shown in listings.
func (s PickupStatus) Label() string {
	switch s {
	case PickupStatusPending:
		return "Pending"
	case PickupStatusEnRoute:
		return "En route"
	case PickupStatusCompleted:
		return "Completed"
	case PickupStatusCancelled:
		return "Cancelled"
	}
	return string(s)
}

// Badge is the colour used by the staff console for the status chip.
func (s PickupStatus) Badge() string {
	switch s {
	case PickupStatusPending:
		return "orange"
	case PickupStatusEnRoute:
		return "blue"
	case PickupStatusCompleted:
		return "green"
	case PickupStatusCancelled:
		return "red"
	}
	return "gray"
}

// ParsePickupStatus converts raw input into a PickupStatus.
func ParsePickupStatus(value string) (PickupStatus, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	for _, candidate := range validPickupStatuses {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid pickup status %q", value)
}
