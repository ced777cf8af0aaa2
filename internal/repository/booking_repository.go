package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/petitrideau/theatre-ticket-reservation/internal/model"
)

// ErrBookingNotFound indicates that a booking was not located in the DB.
var ErrBookingNotFound = errors.New("booking not found")

// BookingRepo provides CRUD operations for bookings.  A booking's seat_count
// has already been debited from the session ledger before the row is
// inserted; the repository therefore never touches sessions.reserved_count.
// Status transitions are compare-and-set so each side effect attached to a
// transition (seat release, ticket voiding) fires exactly once.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingCols = `id, reference, session_id, user_id, booking_type, seat_count,
                     status, payment_status, total_amount_cents, idempotency_key, created_at, updated_at`

func scanBooking(row interface{ Scan(...any) error }, b *model.Booking) error {
	return row.Scan(
		&b.ID, &b.Reference, &b.SessionID, &b.UserID, &b.Type, &b.SeatCount,
		&b.Status, &b.PaymentStatus, &b.TotalAmountCents, &b.IdempotencyKey, &b.CreatedAt, &b.UpdatedAt,
	)
}

// Create inserts a new booking row and populates the generated ID and the
// DB-default timestamps on the provided struct.  The idempotency_key column
// carries a unique index; a violation surfaces as ErrDuplicateKey so the
// caller can fall back to the stored booking for that key.
func (r *BookingRepo) Create(ctx context.Context, b *model.Booking) error {
	const q = `INSERT INTO bookings
	           (reference, session_id, user_id, booking_type, seat_count, status, payment_status, total_amount_cents, idempotency_key)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q,
		b.Reference, b.SessionID, b.UserID, b.Type, b.SeatCount, b.Status, b.PaymentStatus, b.TotalAmountCents, b.IdempotencyKey)
	if err != nil {
		if IsDuplicateKey(err) {
			return ErrDuplicateKey
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	const sel = `SELECT ` + bookingCols + ` FROM bookings WHERE id = ?`
	return scanBooking(r.db.QueryRowContext(ctx, sel, b.ID), b)
}

// GetByID returns a booking by primary key, ErrBookingNotFound when absent.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (model.Booking, error) {
	const q = `SELECT ` + bookingCols + ` FROM bookings WHERE id = ?`
	var b model.Booking
	if err := scanBooking(r.db.QueryRowContext(ctx, q, id), &b); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Booking{}, ErrBookingNotFound
		}
		return model.Booking{}, err
	}
	return b, nil
}

// GetByIdempotencyKey returns the booking previously created under the given
// client key, ErrBookingNotFound when the key has never been used.
func (r *BookingRepo) GetByIdempotencyKey(ctx context.Context, key string) (model.Booking, error) {
	const q = `SELECT ` + bookingCols + ` FROM bookings WHERE idempotency_key = ? LIMIT 1`
	var b model.Booking
	if err := scanBooking(r.db.QueryRowContext(ctx, q, key), &b); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Booking{}, ErrBookingNotFound
		}
		return model.Booking{}, err
	}
	return b, nil
}

// UpdateStatus transitions a booking from one status to another.  The WHERE
// clause pins the expected current status, so of two racing callers exactly
// one observes true and owns the transition's side effects.
func (r *BookingRepo) UpdateStatus(ctx context.Context, id uint64, from, to string) (bool, error) {
	const q = `UPDATE bookings SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND status = ?`
	res, err := r.db.ExecContext(ctx, q, to, id, from)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// SetPaymentStatus records the payment collaborator's verdict.
func (r *BookingRepo) SetPaymentStatus(ctx context.Context, id uint64, status string) error {
	const q = `UPDATE bookings SET payment_status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	_, err := r.db.ExecContext(ctx, q, status, id)
	return err
}

// ListExpiredPending returns bookings still PENDING whose creation time
// predates the cutoff.  The sweeper cancels them and releases their seats;
// the limit bounds each sweep so one huge backlog cannot stall the loop.
func (r *BookingRepo) ListExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]model.Booking, error) {
	const q = `SELECT ` + bookingCols + ` FROM bookings
	           WHERE status = 'PENDING' AND created_at < ?
	           ORDER BY created_at ASC
	           LIMIT ?`
	rows, err := r.db.QueryContext(ctx, q, cutoff.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Booking, 0)
	for rows.Next() {
		var b model.Booking
		if err := scanBooking(rows, &b); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// CountActiveBySession returns the number of non-cancelled bookings for a
// session.  Used to refuse cancelling a session that still has live
// bookings.
func (r *BookingRepo) CountActiveBySession(ctx context.Context, sessionID uint64) (int, error) {
	const q = `SELECT COUNT(*) FROM bookings WHERE session_id = ? AND status <> 'CANCELLED'`
	var n int
	err := r.db.QueryRowContext(ctx, q, sessionID).Scan(&n)
	return n, err
}
