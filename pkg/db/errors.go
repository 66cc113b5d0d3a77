package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// IsUniqueViolation reports whether err is a unique constraint failure. When
// constraintName is provided it must also match.
func IsUniqueViolation(err error, constraintName string) bool {
	return matchesConstraint(err, pgUniqueViolation, "UNIQUE constraint failed", constraintName)
}

// IsForeignKeyViolation reports whether err is a foreign key failure, such as
// deleting a row that is still referenced.
func IsForeignKeyViolation(err error, constraintName string) bool {
	return matchesConstraint(err, pgForeignKeyViolation, "FOREIGN KEY constraint failed", constraintName)
}

func matchesConstraint(err error, pgCode, sqliteText, constraintName string) bool {
	if err == nil {
		return false
	}

	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return pgxErr.Code == pgCode && (constraintName == "" || pgxErr.ConstraintName == constraintName)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == pgCode && (constraintName == "" || pqErr.Constraint == constraintName)
	}

	msg := err.Error()
	if !strings.Contains(msg, sqliteText) {
		return false
	}
	return constraintName == "" || strings.Contains(msg, constraintName)
}
