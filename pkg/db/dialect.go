package db

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ForUpdate adds a row lock on postgres. SQLite serialises writers on its
// own and has no FOR UPDATE.
func ForUpdate(q *gorm.DB) *gorm.DB {
	if q.Dialector.Name() != "postgres" {
		return q
	}
	return q.Clauses(clause.Locking{Strength: "UPDATE"})
}

// MonthBucket renders an SQL expression that truncates a timestamp column to
// a "YYYY-MM" label in UTC.
func MonthBucket(conn *gorm.DB, column string) string {
	if conn.Dialector.Name() == "sqlite" {
		return fmt.Sprintf("strftime('%%Y-%%m', %s)", column)
	}
	return fmt.Sprintf("to_char(date_trunc('month', %s AT TIME ZONE 'UTC'), 'YYYY-MM')", column)
}

// DaysBetween renders the whole number of calendar days from the date part of
// fromColumn to toColumn.
func DaysBetween(conn *gorm.DB, fromColumn, toColumn string) string {
	if conn.Dialector.Name() == "sqlite" {
		return fmt.Sprintf("CAST(julianday(date(%s)) - julianday(date(%s)) AS INTEGER)", toColumn, fromColumn)
	}
	return fmt.Sprintf("(%s::date - (%s AT TIME ZONE 'UTC')::date)", toColumn, fromColumn)
}

// LikeEscape is the ESCAPE character paired with ContainsPattern. Both
// postgres and SQLite accept the clause.
const LikeEscape = `\`

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ContainsPattern turns free text into a LIKE pattern matching it anywhere,
// with the text's own wildcards taken literally. Use it as
// "col LIKE ? ESCAPE '\'".
func ContainsPattern(term string) string {
	return "%" + likeEscaper.Replace(term) + "%"
}
