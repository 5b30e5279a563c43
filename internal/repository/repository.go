// Package repository defines storage contracts for tickets, archives, notifications
// and identities along with their Postgres implementations.
package repository

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when the addressed row does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrConflict is returned when a uniqueness constraint would be violated.
	ErrConflict = errors.New("repository: conflict")
	// ErrVersionConflict is returned by compare-and-swap writes on a stale version.
	ErrVersionConflict = errors.New("repository: version conflict")
)

const uniqueViolation = "23505"

type rowScanner interface {
	Scan(dest ...any) error
}

func mapPgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrConflict
	}
	return err
}
