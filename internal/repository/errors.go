// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as handlers
// and services to distinguish between different failure scenarios. For
// example, ErrForbidden indicates that the current user is not authorized to
// perform an operation on a resource owned by someone else, while
// ErrDuplicateKey signals that a unique constraint (idempotency key, ticket
// code) rejected an insert.
package repository

import (
	"errors"
	"strings"
)

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own. Handlers should translate this into an HTTP 403
// response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a delete or update cannot be performed
// because of conflicting state, such as cancelling a session that still has
// active bookings. Handlers should translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// ErrDuplicateKey is returned when an insert violates a unique constraint.
// For bookings this means the idempotency key was already used and the
// caller should load and return the existing row instead of failing.
var ErrDuplicateKey = errors.New("duplicate key")

// IsDuplicateKey reports whether err is a MySQL duplicate-entry error (1062)
// or the ErrDuplicateKey sentinel.
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDuplicateKey) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "1062")
}

// IsTransient reports whether err is a storage-level conflict that is safe
// to retry: a deadlock (1213) or a lock wait timeout (1205). The conditional
// updates used by the ledger are idempotent per attempt, so a bounded retry
// with backoff cannot double-apply.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "1213") || strings.Contains(msg, "1205") ||
		strings.Contains(msg, "deadlock")
}
