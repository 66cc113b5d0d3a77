package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/marquezdaniela/reciclaje-municipal/pkg/enums"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/logger"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/outbox"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/outbox/payloads"
)

const consumerName = "pickup-notifications"

type dedupe interface {
	Claim(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Complete(ctx context.Context, consumer string, eventID uuid.UUID) error
	Release(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// Consumer reads pickup events from the requests subscription and hands
// the ones citizens and operators care about to the Notifier.
type Consumer struct {
	notifier     *Notifier
	subscription *pubsub.Subscriber
	idempotency  dedupe
	logg         *logger.Logger
}

func NewConsumer(notifier *Notifier, subscription *pubsub.Subscriber, idem dedupe, logg *logger.Logger) (*Consumer, error) {
	if notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("requests subscription required")
	}
	if idem == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		notifier:     notifier,
		subscription: subscription,
		idempotency:  idem,
		logg:         logg,
	}, nil
}

// Run blocks receiving messages until ctx is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.process(ctx, msg.ID, msg.Attributes, msg.Data) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

// process reports whether the message should be acked. Malformed messages
// are acked and dropped; handler failures are nacked for redelivery.
func (c *Consumer) process(ctx context.Context, messageID string, attrs map[string]string, data []byte) bool {
	eventType := enums.OutboxEventType(attrs["event_type"])
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": messageID,
		"event_type": eventType,
	})

	if eventType != enums.EventPickupRequestAssigned && eventType != enums.EventPickupRequestStatusChanged {
		c.logg.Debug(logCtx, "event not relevant for notifications")
		return true
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return true
	}
	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return true
	}
	logCtx = c.logg.WithField(logCtx, "event_id", eventID.String())

	handle, err := c.handler(eventType, envelope.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to decode payload", err)
		return true
	}

	claimed, err := c.idempotency.Claim(ctx, consumerName, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency claim failed", err)
		return false
	}
	if !claimed {
		c.logg.Info(logCtx, "event already processed")
		return true
	}

	if err := handle(ctx); err != nil {
		c.logg.Error(logCtx, "notification handling failed", err)
		if relErr := c.idempotency.Release(ctx, consumerName, eventID); relErr != nil {
			c.logg.Error(logCtx, "failed to release idempotency claim", relErr)
		}
		return false
	}
	if err := c.idempotency.Complete(ctx, consumerName, eventID); err != nil {
		// the claim lease still covers redeliveries for a few minutes
		c.logg.Error(logCtx, "failed to mark event done", err)
	}
	c.logg.Info(logCtx, "notifications delivered")
	return true
}

// handler decodes the payload up front so a malformed body is dropped
// instead of being redelivered forever.
func (c *Consumer) handler(eventType enums.OutboxEventType, data json.RawMessage) (func(context.Context) error, error) {
	switch eventType {
	case enums.EventPickupRequestAssigned:
		var evt payloads.PickupRequestAssignedEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			return nil, fmt.Errorf("decode assigned payload: %w", err)
		}
		return func(ctx context.Context) error { return c.notifier.Assigned(ctx, evt) }, nil
	case enums.EventPickupRequestStatusChanged:
		var evt payloads.PickupRequestStatusChangedEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			return nil, fmt.Errorf("decode status payload: %w", err)
		}
		return func(ctx context.Context) error { return c.notifier.StatusChanged(ctx, evt) }, nil
	}
	return nil, fmt.Errorf("unsupported event type %s", eventType)
}
