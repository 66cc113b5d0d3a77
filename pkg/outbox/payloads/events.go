package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/marquezdaniela/reciclaje-municipal/pkg/enums"
)

// PickupRequestCreatedEvent is emitted when a citizen files a request.
type PickupRequestCreatedEvent struct {
	RequestID     int64     `json:"request_id"`
	Code          string    `json:"code"`
	CitizenID     uuid.UUID `json:"citizen_id"`
	MaterialCode  string    `json:"material_code"`
	Quantity      int       `json:"quantity"`
	EstimatedDate string    `json:"estimated_date"`
}

// PickupRequestAssignedEvent carries one bulk assignment batch.
type PickupRequestAssignedEvent struct {
	OperatorID uuid.UUID         `json:"operator_id"`
	Requests   []AssignedRequest `json:"requests"`
	AssignedAt time.Time         `json:"assigned_at"`
}

// AssignedRequest is a single request inside an assignment batch.
type AssignedRequest struct {
	RequestID      int64              `json:"request_id"`
	Code           string             `json:"code"`
	CitizenID      uuid.UUID          `json:"citizen_id"`
	PreviousStatus enums.PickupStatus `json:"previous_status"`
}

// PickupRequestStatusChangedEvent is emitted by the operator update path.
type PickupRequestStatusChangedEvent struct {
	RequestID   int64              `json:"request_id"`
	Code        string             `json:"code"`
	CitizenID   uuid.UUID          `json:"citizen_id"`
	OperatorID  uuid.UUID          `json:"operator_id"`
	From        enums.PickupStatus `json:"from"`
	To          enums.PickupStatus `json:"to"`
	CompletedAt *time.Time         `json:"completed_at,omitempty"`
}

type OperatorCreatedEvent struct {
	OperatorID    uuid.UUID `json:"operator_id"`
	UserID        uuid.UUID `json:"user_id"`
	DailyCapacity int       `json:"daily_capacity"`
}

type MaterialCreatedEvent struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type MaterialDeletedEvent struct {
	Code string `json:"code"`
}
