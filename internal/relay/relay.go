// Package relay moves committed outbox rows onto the requests Pub/Sub topic.
// Each batch is claimed and settled inside one database transaction, so a
// row is either marked delivered, scheduled for retry, or dead-lettered
// together with the claim.
package relay

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/marquezdaniela/reciclaje-municipal/pkg/config"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/db/models"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/enums"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/logger"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/metrics"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/outbox/registry"
)

// Options tune one relay loop.
type Options struct {
	BatchSize      int
	PollInterval   time.Duration
	MaxAttempts    int
	PublishTimeout time.Duration
	MaxBackoff     time.Duration
}

// OptionsFrom reads the outbox section, falling back to sane values for
// anything unset.
func OptionsFrom(cfg config.OutboxConfig) Options {
	opts := Options{
		BatchSize:      cfg.BatchSize,
		PollInterval:   time.Duration(cfg.PollIntervalMS) * time.Millisecond,
		MaxAttempts:    cfg.MaxAttempts,
		PublishTimeout: 15 * time.Second,
		MaxBackoff:     10 * time.Second,
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 500 * time.Millisecond
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 10
	}
	return opts
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type rowStore interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, cause error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, cause error, terminalAttempts int) error
}

type deadLetterStore interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type resolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

// Sender publishes one message and waits for the server ack.
type Sender interface {
	Send(ctx context.Context, topic string, msg *gcppubsub.Message) error
}

type Params struct {
	Options     Options
	Logger      *logger.Logger
	Tx          txRunner
	Rows        rowStore
	DeadLetters deadLetterStore
	Events      resolver
	Sender      Sender
	Metrics     *metrics.OutboxMetrics
}

type Relay struct {
	opts    Options
	logg    *logger.Logger
	tx      txRunner
	rows    rowStore
	dead    deadLetterStore
	events  resolver
	send    Sender
	metrics *metrics.OutboxMetrics
	now     func() time.Time
}

func New(p Params) (*Relay, error) {
	switch {
	case p.Logger == nil:
		return nil, errors.New("logger is required")
	case p.Tx == nil:
		return nil, errors.New("transaction runner is required")
	case p.Rows == nil:
		return nil, errors.New("outbox repository is required")
	case p.DeadLetters == nil:
		return nil, errors.New("dlq repository is required")
	case p.Events == nil:
		return nil, errors.New("event registry is required")
	case p.Sender == nil:
		return nil, errors.New("sender is required")
	}
	opts := p.Options
	if opts.BatchSize <= 0 || opts.MaxAttempts <= 0 || opts.PollInterval <= 0 {
		opts = OptionsFrom(config.OutboxConfig{
			BatchSize:      opts.BatchSize,
			PollIntervalMS: int(opts.PollInterval / time.Millisecond),
			MaxAttempts:    opts.MaxAttempts,
		})
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = 15 * time.Second
	}
	if opts.MaxBackoff < opts.PollInterval {
		opts.MaxBackoff = opts.PollInterval
	}
	return &Relay{
		opts:    opts,
		logg:    p.Logger,
		tx:      p.Tx,
		rows:    p.Rows,
		dead:    p.DeadLetters,
		events:  p.Events,
		send:    p.Sender,
		metrics: p.Metrics,
		now:     time.Now,
	}, nil
}

// Run drains the outbox until ctx is canceled. A full batch is followed
// immediately by the next one; otherwise the loop waits a poll interval,
// doubling it after each failed batch.
func (r *Relay) Run(ctx context.Context) error {
	wait := newPacer(r.opts.PollInterval, r.opts.MaxBackoff)
	for {
		if err := ctx.Err(); err != nil {
			r.logg.Info(ctx, "outbox relay stopping")
			return err
		}

		n, err := r.Drain(ctx)
		var pause time.Duration
		switch {
		case err != nil:
			r.logg.Error(ctx, "outbox relay batch failed", err)
			pause = wait.failed()
		case n >= r.opts.BatchSize:
			wait.reset()
			continue
		default:
			pause = wait.reset()
		}

		timer := time.NewTimer(pause)
		select {
		case <-ctx.Done():
			timer.Stop()
			r.logg.Info(ctx, "outbox relay stopping")
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Drain handles one batch and returns how many rows it claimed.
func (r *Relay) Drain(ctx context.Context) (int, error) {
	started := r.now()
	claimed := 0
	err := r.tx.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := r.rows.FetchUnpublishedForPublish(tx, r.opts.BatchSize, r.opts.MaxAttempts)
		if err != nil {
			return fmt.Errorf("claim outbox rows: %w", err)
		}
		claimed = len(rows)
		for _, row := range rows {
			d := r.deliver(ctx, row)
			if err := r.settle(ctx, tx, row, d); err != nil {
				return err
			}
		}
		return nil
	})
	if claimed > 0 {
		r.metrics.ObserveCycle(r.now().Sub(started))
	}
	return claimed, err
}

type delivery struct {
	outcome string
	reason  enums.OutboxDLQErrorReason
	topic   string
	err     error
}

func (r *Relay) deliver(ctx context.Context, row models.OutboxEvent) delivery {
	resolved, err := r.events.Resolve(row)
	if err != nil {
		return delivery{outcome: metrics.OutcomeDeadLetter, reason: enums.OutboxDLQReasonNonRetryable, err: err}
	}
	topic := resolved.Descriptor.Topic

	sendCtx, cancel := context.WithTimeout(ctx, r.opts.PublishTimeout)
	defer cancel()
	err = r.send.Send(sendCtx, topic, message(row, resolved))
	if err == nil {
		return delivery{outcome: metrics.OutcomeDelivered, topic: topic}
	}

	var permanent registry.NonRetryableError
	if errors.As(err, &permanent) {
		return delivery{outcome: metrics.OutcomeDeadLetter, reason: enums.OutboxDLQReasonNonRetryable, topic: topic, err: err}
	}
	if row.AttemptCount+1 >= r.opts.MaxAttempts {
		return delivery{
			outcome: metrics.OutcomeDeadLetter,
			reason:  enums.OutboxDLQReasonMaxAttempts,
			topic:   topic,
			err:     fmt.Errorf("gave up after %d attempts: %w", row.AttemptCount+1, err),
		}
	}
	return delivery{outcome: metrics.OutcomeRetry, topic: topic, err: err}
}

func (r *Relay) settle(ctx context.Context, tx *gorm.DB, row models.OutboxEvent, d delivery) error {
	r.metrics.Record(string(row.EventType), d.outcome)
	logCtx := r.logg.WithFields(ctx, map[string]any{
		"outbox_id":      row.ID.String(),
		"event_type":     row.EventType,
		"aggregate_type": row.AggregateType,
		"aggregate_id":   row.AggregateID,
		"attempt_count":  row.AttemptCount,
		"topic":          d.topic,
		"outcome":        d.outcome,
	})

	switch d.outcome {
	case metrics.OutcomeDelivered:
		if err := r.rows.MarkPublishedTx(tx, row.ID); err != nil {
			return fmt.Errorf("mark %s published: %w", row.ID, err)
		}
		r.logg.Debug(logCtx, "outbox.delivered")
		return nil

	case metrics.OutcomeRetry:
		r.logg.Warn(r.logg.WithField(logCtx, "error", d.err.Error()), "outbox.retry")
		if err := r.rows.MarkFailedTx(tx, row.ID, d.err); err != nil {
			return fmt.Errorf("mark %s failed: %w", row.ID, err)
		}
		return nil
	}

	r.logg.Warn(r.logg.WithFields(logCtx, map[string]any{
		"error":        d.err.Error(),
		"error_reason": d.reason,
	}), "outbox.dead_letter")
	msg := d.err.Error()
	entry := models.OutboxDLQ{
		EventID:       row.ID,
		EventType:     row.EventType,
		AggregateType: row.AggregateType,
		AggregateID:   row.AggregateID,
		Payload:       row.Payload,
		ErrorReason:   d.reason,
		ErrorMessage:  &msg,
		AttemptCount:  row.AttemptCount,
		FailedAt:      r.now().UTC(),
	}
	if err := r.dead.InsertTx(tx, entry); err != nil {
		return fmt.Errorf("dead-letter %s: %w", row.ID, err)
	}
	if err := r.rows.MarkTerminalTx(tx, row.ID, d.err, r.opts.MaxAttempts); err != nil {
		return fmt.Errorf("mark %s terminal: %w", row.ID, err)
	}
	return nil
}

// message carries the stored envelope as the body; consumers route on the
// attributes without decoding it.
func message(row models.OutboxEvent, resolved *registry.ResolvedEvent) *gcppubsub.Message {
	return &gcppubsub.Message{
		Data: row.Payload,
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(row.EventType),
			"aggregate_type": string(row.AggregateType),
			"aggregate_id":   row.AggregateID,
			"created_at":     row.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	}
}
