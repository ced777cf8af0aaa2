package repository

import (
	"context"
	"database/sql"

	"github.com/petitrideau/theatre-ticket-reservation/internal/model"
)

// TicketRepo provides data access to the tickets table.  A booking's whole
// ticket set is inserted in a single statement so partial issuance is never
// observable; tickets.code and (booking_id, serial) carry unique indexes.
type TicketRepo struct {
	db *sql.DB
}

// NewTicketRepo returns a new TicketRepo bound to the provided database.
func NewTicketRepo(db *sql.DB) *TicketRepo { return &TicketRepo{db: db} }

// CreateAll inserts every ticket in one multi-row statement.  Passing an
// empty slice has no effect and returns nil.  A unique-index violation
// (another issuer won the race for this booking) surfaces as
// ErrDuplicateKey; the caller should re-list and return the existing set.
func (r *TicketRepo) CreateAll(ctx context.Context, tickets []model.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	query := `INSERT INTO tickets (booking_id, serial, code, status) VALUES `
	args := make([]interface{}, 0, len(tickets)*4)
	for i, t := range tickets {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?)"
		args = append(args, t.BookingID, t.Serial, t.Code, t.Status)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		if IsDuplicateKey(err) {
			return ErrDuplicateKey
		}
		return err
	}
	return nil
}

// ListByBooking returns all tickets of a booking ordered by serial.  An
// empty slice means no tickets have been issued yet.
func (r *TicketRepo) ListByBooking(ctx context.Context, bookingID uint64) ([]model.Ticket, error) {
	const q = `SELECT id, booking_id, serial, code, status, created_at
	           FROM tickets WHERE booking_id = ? ORDER BY serial ASC`
	rows, err := r.db.QueryContext(ctx, q, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Ticket, 0)
	for rows.Next() {
		var t model.Ticket
		if err := rows.Scan(&t.ID, &t.BookingID, &t.Serial, &t.Code, &t.Status, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// VoidByBooking voids every still-active ticket of a booking.  Tickets
// already scanned (USED) keep their status.
func (r *TicketRepo) VoidByBooking(ctx context.Context, bookingID uint64) error {
	const q = `UPDATE tickets SET status = 'VOID' WHERE booking_id = ? AND status = 'ACTIVE'`
	_, err := r.db.ExecContext(ctx, q, bookingID)
	return err
}

// MarkUsed flips an active ticket to USED by its scan code.  The returned
// bool is false when the code is unknown, already used or void, so a second
// scan of the same ticket is detected at the gate.
func (r *TicketRepo) MarkUsed(ctx context.Context, code string) (bool, error) {
	const q = `UPDATE tickets SET status = 'USED' WHERE code = ? AND status = 'ACTIVE'`
	res, err := r.db.ExecContext(ctx, q, code)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
