package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// DBDetail is the subset of a postgres error worth putting in a log line.
type DBDetail struct {
	SQLState   string `json:"sqlstate"`
	Constraint string `json:"constraint,omitempty"`
	Table      string `json:"table,omitempty"`
	Column     string `json:"column,omitempty"`
	Detail     string `json:"detail,omitempty"`
	Message    string `json:"message,omitempty"`
}

// Transient reports whether the statement may succeed if the whole
// transaction is replayed: serialization failures and deadlocks.
func (d *DBDetail) Transient() bool {
	return d != nil && (d.SQLState == "40001" || d.SQLState == "40P01")
}

// ErrorDump flattens an error chain for structured logs.
type ErrorDump struct {
	TopMessage string    `json:"top_message"`
	Code       Code      `json:"code,omitempty"`
	Chain      []string  `json:"chain,omitempty"`
	DB         *DBDetail `json:"db,omitempty"`
}

const maxChainDepth = 8

// Dump walks at most maxChainDepth wrapped errors and pulls out driver
// diagnostics from either pgx or lib/pq.
func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}

	d := ErrorDump{TopMessage: err.Error(), DB: dbDetail(err)}
	if te := As(err); te != nil {
		d.Code = te.Code()
	}
	for depth, e := 0, err; e != nil && depth < maxChainDepth; depth, e = depth+1, errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}
	return d
}

func dbDetail(err error) *DBDetail {
	if pgxErr := (*pgconn.PgError)(nil); errors.As(err, &pgxErr) {
		return &DBDetail{
			SQLState:   pgxErr.Code,
			Constraint: pgxErr.ConstraintName,
			Table:      pgxErr.TableName,
			Column:     pgxErr.ColumnName,
			Detail:     pgxErr.Detail,
			Message:    pgxErr.Message,
		}
	}
	if pqErr := (*pq.Error)(nil); errors.As(err, &pqErr) {
		return &DBDetail{
			SQLState:   string(pqErr.Code),
			Constraint: pqErr.Constraint,
			Table:      pqErr.Table,
			Column:     pqErr.Column,
			Detail:     pqErr.Detail,
			Message:    pqErr.Message,
		}
	}
	return nil
}
