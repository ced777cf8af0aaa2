// Package repository contains data access logic for session operations.
// This file is the session capacity ledger: sessions.reserved_count is
// mutated only through TryReserve and Release, both single conditional
// statements, so the capacity invariant holds no matter how many requests
// race for the last seats.
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/petitrideau/theatre-ticket-reservation/internal/model"
)

// ErrSessionNotFound indicates that a session was not located in the DB or
// is no longer open for booking.
var ErrSessionNotFound = errors.New("session not found")

// SessionRepo manages persistence for sessions and owns the capacity ledger.
type SessionRepo struct {
	db *sql.DB
}

// NewSessionRepo constructs a SessionRepo with the given DB handle.
func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{db: db} }

// DB exposes the underlying sql.DB.  It allows callers to begin transactions
// spanning multiple repositories when fine-grained control is needed.
func (r *SessionRepo) DB() *sql.DB { return r.db }

const sessionCols = `id, spectacle_id, venue_id, starts_at, total_capacity, reserved_count,
                     base_price_cents, session_type, status, created_at, updated_at`

func scanSession(row interface{ Scan(...any) error }, s *model.Session) error {
	return row.Scan(
		&s.ID, &s.SpectacleID, &s.VenueID, &s.StartsAt, &s.TotalCapacity, &s.ReservedCount,
		&s.BasePriceCents, &s.Type, &s.Status, &s.CreatedAt, &s.UpdatedAt,
	)
}

// Create inserts a new session and assigns the generated ID back to the
// struct.  Status is implicitly SCHEDULED and reserved_count starts at 0 via
// DB defaults; the inserted row is read back to populate them.
func (r *SessionRepo) Create(ctx context.Context, s *model.Session) error {
	const q = `INSERT INTO sessions (spectacle_id, venue_id, starts_at, total_capacity, base_price_cents, session_type)
	           VALUES (?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, s.SpectacleID, s.VenueID, s.StartsAt, s.TotalCapacity, s.BasePriceCents, s.Type)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	const sel = `SELECT ` + sessionCols + ` FROM sessions WHERE id = ?`
	return scanSession(r.db.QueryRowContext(ctx, sel, s.ID), s)
}

// GetByID retrieves a session by its ID.  It returns ErrSessionNotFound if
// there is no matching row.
func (r *SessionRepo) GetByID(ctx context.Context, id uint64) (model.Session, error) {
	const q = `SELECT ` + sessionCols + ` FROM sessions WHERE id = ?`
	var s model.Session
	if err := scanSession(r.db.QueryRowContext(ctx, q, id), &s); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Session{}, ErrSessionNotFound
		}
		return model.Session{}, err
	}
	return s, nil
}

// AvailableSeats returns total_capacity - reserved_count for a scheduled
// session.  Missing or non-scheduled sessions yield ErrSessionNotFound.
func (r *SessionRepo) AvailableSeats(ctx context.Context, id uint64) (uint32, error) {
	const q = `SELECT total_capacity - reserved_count FROM sessions WHERE id = ? AND status = 'SCHEDULED'`
	var n uint32
	if err := r.db.QueryRowContext(ctx, q, id).Scan(&n); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrSessionNotFound
		}
		return 0, err
	}
	return n, nil
}

// ReserveResult reports the outcome of a TryReserve call.  A non-granted
// result is an expected business outcome, not an error: the seats went to a
// concurrent booking and AvailableSeats tells the caller what is left.
type ReserveResult struct {
	Granted        bool   `json:"granted"`
	AvailableSeats uint32 `json:"available_seats"`
}

// TryReserve attempts to debit seatCount seats from the session ledger.  The
// check and the increment happen in one conditional UPDATE so concurrent
// callers are serialized by the storage engine's row lock; rows-affected
// decides whether the reservation was granted.  Never split this into a
// read-then-write sequence.
func (r *SessionRepo) TryReserve(ctx context.Context, sessionID uint64, seatCount uint32) (ReserveResult, error) {
	const q = `UPDATE sessions
	           SET reserved_count = reserved_count + ?
	           WHERE id = ? AND status = 'SCHEDULED' AND reserved_count + ? <= total_capacity`
	res, err := r.db.ExecContext(ctx, q, seatCount, sessionID, seatCount)
	if err != nil {
		return ReserveResult{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return ReserveResult{}, err
	}
	avail, err := r.AvailableSeats(ctx, sessionID)
	if err != nil {
		// The update matched nothing and the session is gone or closed.
		if n == 0 {
			return ReserveResult{}, err
		}
		// Granted but the follow-up read failed; report the grant anyway.
		return ReserveResult{Granted: true}, nil
	}
	return ReserveResult{Granted: n > 0, AvailableSeats: avail}, nil
}

// Release credits seatCount seats back to the ledger, clamping at zero so a
// double release can never drive reserved_count negative (the column is
// unsigned; an unclamped subtraction would error out mid-cancellation).
func (r *SessionRepo) Release(ctx context.Context, sessionID uint64, seatCount uint32) error {
	const q = `UPDATE sessions
	           SET reserved_count = CASE WHEN reserved_count >= ? THEN reserved_count - ? ELSE 0 END
	           WHERE id = ?`
	_, err := r.db.ExecContext(ctx, q, seatCount, seatCount, sessionID)
	return err
}

// ListUpcomingBySpectacle returns scheduled future sessions for a spectacle
// ordered by start time.  Used by the public browse endpoints.
func (r *SessionRepo) ListUpcomingBySpectacle(ctx context.Context, spectacleID uint64) ([]model.Session, error) {
	const q = `SELECT ` + sessionCols + ` FROM sessions
	           WHERE spectacle_id = ? AND status = 'SCHEDULED' AND starts_at > UTC_TIMESTAMP()
	           ORDER BY starts_at ASC`
	rows, err := r.db.QueryContext(ctx, q, spectacleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := make([]model.Session, 0)
	for rows.Next() {
		var s model.Session
		if err := scanSession(rows, &s); err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateSchedule updates a session's mutable attributes.  Capacity may only
// grow or shrink down to the already reserved count; shrinking below it
// would break the ledger invariant, so the condition rejects it and the
// caller receives ErrConflict.
func (r *SessionRepo) UpdateSchedule(ctx context.Context, s *model.Session) error {
	const q = `UPDATE sessions
	           SET starts_at = ?, base_price_cents = ?, total_capacity = ?, updated_at = CURRENT_TIMESTAMP
	           WHERE id = ? AND status = 'SCHEDULED' AND total_capacity >= reserved_count AND ? >= reserved_count`
	res, err := r.db.ExecContext(ctx, q, s.StartsAt, s.BasePriceCents, s.TotalCapacity, s.ID, s.TotalCapacity)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	// Zero rows affected is ambiguous: the driver reports changed rows, so a
	// resubmission of the current values looks the same as a rejected update.
	// Re-read the row to tell the cases apart.
	var reserved uint32
	err = r.db.QueryRowContext(ctx, `SELECT reserved_count FROM sessions WHERE id = ? AND status = 'SCHEDULED'`, s.ID).Scan(&reserved)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrSessionNotFound
	}
	if err != nil {
		return err
	}
	if s.TotalCapacity < reserved {
		return ErrConflict
	}
	return nil // values already match, nothing to change
}

// Cancel marks a scheduled session as cancelled so no new bookings may
// target it.  Existing bookings are handled by their own cancellation flow.
// Returns ErrSessionNotFound when the session does not exist or has already
// left the SCHEDULED state.
func (r *SessionRepo) Cancel(ctx context.Context, id uint64) error {
	const q = `UPDATE sessions SET status = 'CANCELLED' WHERE id = ? AND status = 'SCHEDULED'`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSessionNotFound
	}
	return nil
}
