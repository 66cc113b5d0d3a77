package outbox

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/marquezdaniela/reciclaje-municipal/pkg/db/models"
)

const maxErrorLen = 1024

// clip bounds stored error text without splitting a UTF-8 sequence.
func clip(msg string) string {
	if len(msg) <= maxErrorLen {
		return msg
	}
	return strings.ToValidUTF8(msg[:maxErrorLen], "")
}

// Repository owns outbox_events.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Insert(tx *gorm.DB, event models.OutboxEvent) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.Create(&event).Error
}

// FetchUnpublishedForPublish locks up to limit undelivered rows that still
// have attempts left, oldest first. On postgres concurrent publishers skip
// rows another one holds.
func (r *Repository) FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	q := tx.Where("published_at IS NULL")
	if maxAttempts > 0 {
		q = q.Where("attempt_count < ?", maxAttempts)
	}
	if tx.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
	}
	var rows []models.OutboxEvent
	err := q.Order("created_at, id").Limit(limit).Find(&rows).Error
	return rows, err
}

func (r *Repository) update(tx *gorm.DB, id uuid.UUID, fields map[string]any) error {
	return tx.Model(&models.OutboxEvent{}).Where("id = ?", id).Updates(fields).Error
}

func (r *Repository) MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error {
	return r.update(tx, id, map[string]any{"published_at": time.Now().UTC(), "last_error": nil})
}

// MarkFailedTx records a retryable failure and burns one attempt.
func (r *Repository) MarkFailedTx(tx *gorm.DB, id uuid.UUID, cause error) error {
	return r.update(tx, id, map[string]any{
		"last_error":    clip(cause.Error()),
		"attempt_count": gorm.Expr("attempt_count + 1"),
	})
}

// MarkTerminalTx parks a row at terminalAttempts so the publisher never
// selects it again.
func (r *Repository) MarkTerminalTx(tx *gorm.DB, id uuid.UUID, cause error, terminalAttempts int) error {
	return r.update(tx, id, map[string]any{
		"last_error":    clip(cause.Error()),
		"attempt_count": terminalAttempts,
	})
}

// PruneBefore deletes at most batch rows created or published before
// cutoff: delivered rows, plus undelivered ones parked at minAttempts.
// Callers loop until fewer than batch rows come back.
func (r *Repository) PruneBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, minAttempts, batch int) (int64, error) {
	if tx == nil {
		tx = r.db
	}
	tx = tx.WithContext(ctx)

	cond := tx.Where("published_at IS NOT NULL AND published_at < ?", cutoff)
	if minAttempts > 0 {
		cond = cond.Or("published_at IS NULL AND attempt_count >= ? AND created_at < ?", minAttempts, cutoff)
	}
	var ids []uuid.UUID
	if err := tx.Model(&models.OutboxEvent{}).Where(cond).Order("created_at").Limit(batch).Pluck("id", &ids).Error; err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	res := tx.Where("id IN ?", ids).Delete(&models.OutboxEvent{})
	return res.RowsAffected, res.Error
}

// DLQRepository owns outbox_dlq.
type DLQRepository struct {
	db *gorm.DB
}

func NewDLQRepository(db *gorm.DB) *DLQRepository {
	return &DLQRepository{db: db}
}

func (r *DLQRepository) InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if entry.ErrorMessage != nil {
		msg := clip(*entry.ErrorMessage)
		entry.ErrorMessage = &msg
	}
	return tx.Create(&entry).Error
}

// PruneBefore deletes at most batch dead letters that failed before cutoff.
func (r *DLQRepository) PruneBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, batch int) (int64, error) {
	if tx == nil {
		tx = r.db
	}
	tx = tx.WithContext(ctx)

	var ids []uuid.UUID
	if err := tx.Model(&models.OutboxDLQ{}).Where("failed_at < ?", cutoff).Order("failed_at").Limit(batch).Pluck("id", &ids).Error; err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	res := tx.Where("id IN ?", ids).Delete(&models.OutboxDLQ{})
	return res.RowsAffected, res.Error
}
