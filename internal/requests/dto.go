package requests

import (
	"time"

	"github.com/google/uuid"

	"github.com/marquezdaniela/reciclaje-municipal/pkg/db/models"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/enums"
)

// PartyDTO names the citizen or operator attached to a request.
type PartyDTO struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	FullName string    `json:"full_name"`
}

type MaterialRef struct {
	Code  string `json:"code"`
	Name  string `json:"name"`
	Label string `json:"label"`
}

// RequestDTO is the API shape of a pickup request.
type RequestDTO struct {
	ID            int64              `json:"id"`
	Code          string             `json:"code"`
	Citizen       PartyDTO           `json:"citizen"`
	Material      MaterialRef        `json:"material"`
	Quantity      int                `json:"quantity"`
	RequestedAt   time.Time          `json:"requested_at"`
	EstimatedDate string             `json:"estimated_date"`
	Status        enums.PickupStatus `json:"status"`
	StatusLabel   string             `json:"status_label"`
	StatusBadge   string             `json:"status_badge"`
	Operator      *PartyDTO          `json:"operator"`
	Comments      string             `json:"comments"`
	CompletedAt   *time.Time         `json:"completed_at,omitempty"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// CreateRequestInput is what a citizen submits. EstimatedDate is YYYY-MM-DD.
type CreateRequestInput struct {
	MaterialCode  string `json:"material" validate:"required,max=4"`
	Quantity      int    `json:"quantity" validate:"required,min=1"`
	EstimatedDate string `json:"estimated_date" validate:"required,datetime=2006-01-02"`
}

// ListParams drives the role scoped listing.
type ListParams struct {
	Status *enums.PickupStatus
	Limit  int
	Cursor string
}

// AdminFilters narrows the staff listing and export.
type AdminFilters struct {
	Status       *enums.PickupStatus
	MaterialCode string
	OperatorID   *uuid.UUID
	Unassigned   bool
	From         *time.Time
	To           *time.Time
	Search       string
}

type ListResult struct {
	Items      []RequestDTO `json:"items"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

// OperatorUpdateInput is the operator edit form.
type OperatorUpdateInput struct {
	Status   string `json:"status"`
	Comments string `json:"comments" validate:"max=2000"`
}

// StatusChoice is one option of the edit form status select.
type StatusChoice struct {
	Value enums.PickupStatus `json:"value"`
	Label string             `json:"label"`
}

// EditForm is returned when the operator may edit the request.
type EditForm struct {
	Request RequestDTO     `json:"request"`
	Choices []StatusChoice `json:"status_choices"`
}

// BulkAssignInput selects the requests handed to one operator.
type BulkAssignInput struct {
	RequestIDs []int64   `json:"request_ids" validate:"required,min=1,dive,gt=0"`
	OperatorID uuid.UUID `json:"operator_id" validate:"required"`
}

type BulkAssignResult struct {
	Updated      int       `json:"updated"`
	RequestIDs   []int64   `json:"request_ids"`
	Operator     PartyDTO  `json:"operator"`
	OpenLoad     int64     `json:"open_load"`
	Capacity     int       `json:"daily_capacity"`
	OverCapacity bool      `json:"over_capacity"`
	Message      string    `json:"message"`
	AssignedAt   time.Time `json:"assigned_at"`
}

func partyFromUser(id uuid.UUID, u models.User) PartyDTO {
	return PartyDTO{ID: id, Username: u.Username, FullName: u.FullName()}
}

// FromModel maps a request loaded with its associations.
func FromModel(r models.PickupRequest) RequestDTO {
	dto := RequestDTO{
		ID:            r.ID,
		Code:          r.Code(),
		Citizen:       PartyDTO{ID: r.CitizenID},
		Material:      MaterialRef{Code: r.MaterialCode},
		Quantity:      r.Quantity,
		RequestedAt:   r.RequestedAt,
		EstimatedDate: r.EstimatedDate.Format(time.DateOnly),
		Status:        r.Status,
		StatusLabel:   r.Status.Label(),
		StatusBadge:   r.Status.Badge(),
		Comments:      r.Comments,
		CompletedAt:   r.CompletedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	if r.Citizen != nil {
		dto.Citizen = partyFromUser(r.CitizenID, r.Citizen.User)
	}
	if r.Material != nil {
		dto.Material = MaterialRef{Code: r.Material.Code, Name: r.Material.Name, Label: r.Material.Label()}
	}
	if r.OperatorID != nil {
		op := PartyDTO{ID: *r.OperatorID}
		if r.Operator != nil {
			op = partyFromUser(*r.OperatorID, r.Operator.User)
		}
		dto.Operator = &op
	}
	return dto
}

// operatorChoices lists the statuses an operator may pick from current.
func operatorChoices(current enums.PickupStatus) []StatusChoice {
	out := []StatusChoice{}
	if current == enums.PickupStatusPending {
		return out
	}
	for _, s := range enums.PickupStatuses() {
		if s == enums.PickupStatusPending || !current.CanTransitionTo(s) {
			continue
		}
		out = append(out, StatusChoice{Value: s, Label: s.Label()})
	}
	return out
}
