package repository

import (
	"context"
	"database/sql"
	"errors"
)

// Sentinel errors returned by repositories
var (
	ErrSectionNotFound = errors.New("section not found")
	ErrTrackNotFound   = errors.New("track point not found")
)

// dbtx is satisfied by both *sql.DB and *sql.Tx
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
