package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

const (
	pgUniqueViolation = "23505"
	pgUndefinedTable  = "42P01"
	pgUndefinedColumn = "42703"
)

// IsUniqueViolation reports whether the provided error is a unique constraint
// violation from Postgres (pgx or lib/pq) or SQLite. When constraintName is
// provided the error must also reference that constraint; SQLite reports
// columns instead, matched against the <table>_<col>_key naming.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	if code, constraint, ok := pgDetails(err); ok {
		if code != pgUniqueViolation {
			return false
		}
		return constraintName == "" || constraint == constraintName
	}
	msg := err.Error()
	if strings.Contains(msg, "duplicate key value") {
		return constraintName == "" || strings.Contains(msg, `"`+constraintName+`"`)
	}
	idx := strings.Index(msg, sqliteUniqueFailed)
	if idx < 0 {
		return false
	}
	return constraintName == "" || sqliteConstraintName(msg[idx+len(sqliteUniqueFailed):]) == constraintName
}

const sqliteUniqueFailed = "UNIQUE constraint failed: "

// sqliteConstraintName rebuilds the Postgres default constraint name
// (<table>_<col>[_<col>]_key) from SQLite's "table.col, table.col" detail.
func sqliteConstraintName(detail string) string {
	var table string
	var cols []string
	for _, part := range strings.Split(detail, ",") {
		fields := strings.Fields(part)
		if len(fields) == 0 {
			continue
		}
		t, c, ok := strings.Cut(fields[0], ".")
		if !ok {
			return ""
		}
		if table == "" {
			table = t
		}
		cols = append(cols, c)
	}
	if table == "" {
		return ""
	}
	return table + "_" + strings.Join(cols, "_") + "_key"
}

// IsUndefinedObject reports whether err was caused by a missing table or column.
func IsUndefinedObject(err error) bool {
	if err == nil {
		return false
	}
	if code, _, ok := pgDetails(err); ok {
		return code == pgUndefinedTable || code == pgUndefinedColumn
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "no such table") ||
		strings.Contains(msg, "no such column") ||
		strings.Contains(msg, "has no column named")
}

func pgDetails(err error) (code, constraint string, ok bool) {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return pgxErr.Code, pgxErr.ConstraintName, true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code), pqErr.Constraint, true
	}
	return "", "", false
}
