package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const pgUniqueViolation = "23505"

func IsDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}

	msg := err.Error()
	if strings.Contains(msg, "duplicate key value violates unique constraint") {
		return true
	}

	// SQLite (error code 2067)
	return strings.Contains(msg, "UNIQUE constraint failed")
}

const sqliteUniquePrefix = "UNIQUE constraint failed: "

// IsUniqueViolationOn reports whether err violates the unique index named
// constraint. Postgres reports the index name, SQLite reports the indexed
// columns as table.column.
func IsUniqueViolationOn(err error, constraint string, columns ...string) bool {
	if !IsDuplicateKeyErr(err) {
		return false
	}
	if name := ConstraintName(err); name != "" {
		return name == constraint
	}
	return len(columns) > 0 && sameColumns(sqliteUniqueColumns(err.Error()), columns)
}

func sqliteUniqueColumns(msg string) []string {
	idx := strings.Index(msg, sqliteUniquePrefix)
	if idx < 0 {
		return nil
	}
	rest := msg[idx+len(sqliteUniquePrefix):]
	// modernc appends the extended result code, e.g. " (2067)"
	if cut := strings.Index(rest, " ("); cut >= 0 {
		rest = rest[:cut]
	}
	var cols []string
	for _, col := range strings.Split(rest, ",") {
		if col = strings.TrimSpace(col); col != "" {
			cols = append(cols, col)
		}
	}
	return cols
}

func sameColumns(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	seen := make(map[string]struct{}, len(got))
	for _, col := range got {
		seen[col] = struct{}{}
	}
	for _, col := range want {
		if _, ok := seen[col]; !ok {
			return false
		}
	}
	return true
}

// ConstraintName returns the violated constraint when the driver reports it.
func ConstraintName(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName
	}
	return ""
}
