// Package repository defines the storage contracts of the game backend,
// the error values shared by every backend, and the MySQL
// implementations.  Handlers and services only ever match on the
// sentinels below; driver specific errors never leave this layer.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when the requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when an insert collides with an existing
// unique key, e.g. a second user for the same device id.
var ErrConflict = errors.New("conflict")

// ErrVersionConflict is returned by compare-and-swap writes when the
// stored version differs from the expected one.
var ErrVersionConflict = errors.New("version conflict")

// ErrStorage wraps any failure of the underlying store.
var ErrStorage = errors.New("storage error")

// ErrStorageTimeout is returned when a storage call exceeds its deadline.
var ErrStorageTimeout = errors.New("storage timeout")

// Wrap translates a backend error into the repository taxonomy.  Errors
// that already carry a sentinel pass through untouched, as does
// context.Canceled so callers can tell a client disconnect apart.
func Wrap(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrConflict),
		errors.Is(err, ErrVersionConflict), errors.Is(err, ErrStorage),
		errors.Is(err, ErrStorageTimeout), errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", op, ErrStorageTimeout)
	default:
		return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
	}
}

// isDuplicateKey reports whether err is MySQL error 1062 (duplicate entry).
func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}
