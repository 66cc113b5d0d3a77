package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/marquezdaniela/reciclaje-municipal/pkg/logger"
)

const (
	defaultOutboxRetention    = 30 * 24 * time.Hour
	defaultPruneBatch         = 500
	deadLetterRetentionFactor = 3
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type eventPruner interface {
	PruneBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, minAttempts, batch int) (int64, error)
}

type deadLetterPruner interface {
	PruneBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, batch int) (int64, error)
}

type OutboxRetentionJobParams struct {
	Logger      *logger.Logger
	DB          txRunner
	Events      eventPruner
	DeadLetters deadLetterPruner
	Retention   time.Duration
	// MinAttempts marks undelivered rows as abandoned; normally the
	// publisher's max attempts.
	MinAttempts int
	BatchSize   int
}

// NewOutboxRetentionJob prunes delivered and abandoned outbox rows older
// than Retention, and dead letters older than three times that.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	case params.DB == nil:
		return nil, fmt.Errorf("db runner required")
	case params.Events == nil:
		return nil, fmt.Errorf("outbox repository required")
	}
	j := &outboxRetentionJob{
		logg:        params.Logger,
		db:          params.DB,
		events:      params.Events,
		deadLetters: params.DeadLetters,
		retention:   params.Retention,
		minAttempts: params.MinAttempts,
		batch:       params.BatchSize,
		now:         time.Now,
	}
	if j.retention <= 0 {
		j.retention = defaultOutboxRetention
	}
	if j.batch <= 0 {
		j.batch = defaultPruneBatch
	}
	return j, nil
}

type outboxRetentionJob struct {
	logg        *logger.Logger
	db          txRunner
	events      eventPruner
	deadLetters deadLetterPruner
	retention   time.Duration
	minAttempts int
	batch       int
	now         func() time.Time
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	cutoff := now.Add(-j.retention)

	events, err := j.drain(ctx, func(tx *gorm.DB) (int64, error) {
		return j.events.PruneBefore(ctx, tx, cutoff, j.minAttempts, j.batch)
	})
	if err != nil {
		return fmt.Errorf("prune outbox events: %w", err)
	}

	var dead int64
	if j.deadLetters != nil {
		dlqCutoff := now.Add(-deadLetterRetentionFactor * j.retention)
		dead, err = j.drain(ctx, func(tx *gorm.DB) (int64, error) {
			return j.deadLetters.PruneBefore(ctx, tx, dlqCutoff, j.batch)
		})
		if err != nil {
			return fmt.Errorf("prune dead letters: %w", err)
		}
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":               cutoff,
		"events_deleted":       events,
		"dead_letters_deleted": dead,
	}), "outbox.retention.done")
	return nil
}

// drain runs one short transaction per batch until a batch comes back
// short or ctx ends.
func (j *outboxRetentionJob) drain(ctx context.Context, prune func(tx *gorm.DB) (int64, error)) (int64, error) {
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		var n int64
		err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
			var err error
			n, err = prune(tx)
			return err
		})
		if err != nil {
			return total, err
		}
		total += n
		if n < int64(j.batch) {
			return total, nil
		}
	}
}
