// Package repository defines the storage contracts used by the services and
// their MySQL implementations. Sentinel errors let higher layers tell failure
// scenarios apart without inspecting driver errors.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when no row matches the lookup or the conditional
// mutation (e.g. restoring a note that is not soft-deleted).
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller attempts an operation on a
// resource they have no rights over.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a write would violate a uniqueness rule or
// the row is in a state that forbids the mutation (e.g. a signed note).
var ErrConflict = errors.New("conflict")

// ErrInUse is returned when a delete is blocked because other rows still
// reference the record.
var ErrInUse = errors.New("record still referenced")

// ErrEmailExists is returned when inserting a user whose email is taken.
var ErrEmailExists = errors.New("email already exists")

const (
	mysqlDuplicateEntry   = 1062
	mysqlRowIsReferenced  = 1451
	mysqlRowIsReferenced2 = 1217
)

// translate maps driver errors onto the sentinels above. Unknown errors are
// returned unchanged.
func translate(err error) error {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case mysqlDuplicateEntry:
			return ErrConflict
		case mysqlRowIsReferenced, mysqlRowIsReferenced2:
			return ErrInUse
		}
	}
	return err
}
