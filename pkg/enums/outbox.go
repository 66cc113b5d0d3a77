package enums

import "slices"

// OutboxAggregateType names the entity an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregatePickupRequest OutboxAggregateType = "pickup_request"
	AggregateOperator      OutboxAggregateType = "operator"
	AggregateMaterial      OutboxAggregateType = "material"
)

// OutboxEventType names a domain event written to the outbox. The value
// doubles as the Pub/Sub event_type attribute.
type OutboxEventType string

const (
	EventPickupRequestCreated       OutboxEventType = "pickup_request_created"
	EventPickupRequestAssigned      OutboxEventType = "pickup_request_assigned"
	EventPickupRequestStatusChanged OutboxEventType = "pickup_request_status_changed"
	EventOperatorCreated            OutboxEventType = "operator_created"
	EventMaterialCreated            OutboxEventType = "material_created"
	EventMaterialDeleted            OutboxEventType = "material_deleted"
)

// OutboxDLQErrorReason records why the publisher dead-lettered an event.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

var (
	aggregateTypes = []OutboxAggregateType{AggregatePickupRequest, AggregateOperator, AggregateMaterial}
	eventTypes     = []OutboxEventType{
		EventPickupRequestCreated,
		EventPickupRequestAssigned,
		EventPickupRequestStatusChanged,
		EventOperatorCreated,
		EventMaterialCreated,
		EventMaterialDeleted,
	}
)

func (a OutboxAggregateType) IsValid() bool { return slices.Contains(aggregateTypes, a) }

func (e OutboxEventType) IsValid() bool { return slices.Contains(eventTypes, e) }

func (r OutboxDLQErrorReason) String() string { return string(r) }
