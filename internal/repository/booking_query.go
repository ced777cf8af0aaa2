package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

// BookingQueryRepo provides read-only projections of bookings joined with
// session, spectacle and venue metadata for display and export.  It never
// mutates state; ownership is enforced inside the SQL so a user can only
// ever see their own rows.
type BookingQueryRepo struct {
	db *sql.DB
}

// NewBookingQueryRepo returns a new BookingQueryRepo bound to the database.
func NewBookingQueryRepo(db *sql.DB) *BookingQueryRepo { return &BookingQueryRepo{db: db} }

// TicketPart is the ticket slice element embedded in booking projections.
type TicketPart struct {
	Serial uint32 `json:"serial"`
	Code   string `json:"code"`
	Status string `json:"status"`
}

// BookingDetail carries one booking together with the session, spectacle and
// venue information needed to render it, plus its issued tickets.
type BookingDetail struct {
	ID               uint64       `json:"id"`
	Reference        string       `json:"reference"`
	SessionID        uint64       `json:"session_id"`
	Status           string       `json:"status"`
	PaymentStatus    string       `json:"payment_status"`
	BookingType      string       `json:"booking_type"`
	SeatCount        uint32       `json:"seat_count"`
	TotalAmountCents uint32       `json:"total_amount_cents"`
	SpectacleTitle   string       `json:"spectacle_title"`
	VenueName        string       `json:"venue_name"`
	VenueCity        string       `json:"venue_city"`
	StartsAt         time.Time    `json:"starts_at"`
	CreatedAt        time.Time    `json:"created_at"`
	Tickets          []TicketPart `json:"tickets"`
}

// AdminBookingDetail extends BookingDetail with the booker's identity for
// per-session listings used by administrators.
type AdminBookingDetail struct {
	BookingDetail
	UserID    uint64 `json:"user_id"`
	UserEmail string `json:"user_email"`
}

const detailJoin = `FROM bookings b
	           JOIN sessions s ON s.id = b.session_id
	           JOIN spectacles sp ON sp.id = s.spectacle_id
	           JOIN venues v ON v.id = s.venue_id`

func scanDetail(row interface{ Scan(...any) error }, d *BookingDetail) error {
	return row.Scan(
		&d.ID, &d.Reference, &d.SessionID, &d.Status, &d.PaymentStatus, &d.BookingType,
		&d.SeatCount, &d.TotalAmountCents, &d.SpectacleTitle, &d.VenueName, &d.VenueCity,
		&d.StartsAt, &d.CreatedAt,
	)
}

const detailCols = `b.id, b.reference, b.session_id, b.status, b.payment_status, b.booking_type,
	                  b.seat_count, b.total_amount_cents, sp.title, v.name, v.city,
	                  s.starts_at, b.created_at`

// GetByIDForUser returns a single booking for the given user.  Ownership is
// part of the WHERE clause, so a foreign booking simply yields
// sql.ErrNoRows and the handler renders a 404 without leaking existence.
func (r *BookingQueryRepo) GetByIDForUser(ctx context.Context, bookingID, userID uint64) (*BookingDetail, error) {
	q := `SELECT ` + detailCols + ` ` + detailJoin + ` WHERE b.id = ? AND b.user_id = ?`
	var d BookingDetail
	if err := scanDetail(r.db.QueryRowContext(ctx, q, bookingID, userID), &d); err != nil {
		return nil, err
	}
	d.Tickets = []TicketPart{}
	if err := r.populateTickets(ctx, []*BookingDetail{&d}); err != nil {
		return nil, err
	}
	return &d, nil
}

// ListByUser returns all bookings for the given user along with session,
// spectacle, venue and ticket details, newest first.  When no bookings
// exist, an empty slice is returned.
func (r *BookingQueryRepo) ListByUser(ctx context.Context, userID uint64) ([]BookingDetail, error) {
	q := `SELECT ` + detailCols + ` ` + detailJoin + ` WHERE b.user_id = ? ORDER BY b.created_at DESC`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	details := make([]BookingDetail, 0)
	for rows.Next() {
		var d BookingDetail
		if err := scanDetail(rows, &d); err != nil {
			return nil, err
		}
		d.Tickets = []TicketPart{}
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(details) == 0 {
		return details, nil
	}
	refs := make([]*BookingDetail, len(details))
	for i := range details {
		refs[i] = &details[i]
	}
	if err := r.populateTickets(ctx, refs); err != nil {
		return nil, err
	}
	return details, nil
}

// ListBySessionForAdmin returns every booking of a session with the booker's
// identity, newest first.  Role enforcement happens in middleware; this
// query adds the user join the customer-facing projections omit.
func (r *BookingQueryRepo) ListBySessionForAdmin(ctx context.Context, sessionID uint64) ([]AdminBookingDetail, error) {
	q := `SELECT ` + detailCols + `, b.user_id, u.email ` + detailJoin + `
	      JOIN users u ON u.id = b.user_id
	      WHERE b.session_id = ? ORDER BY b.created_at DESC`
	rows, err := r.db.QueryContext(ctx, q, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]AdminBookingDetail, 0)
	for rows.Next() {
		var d AdminBookingDetail
		if err := rows.Scan(
			&d.ID, &d.Reference, &d.SessionID, &d.Status, &d.PaymentStatus, &d.BookingType,
			&d.SeatCount, &d.TotalAmountCents, &d.SpectacleTitle, &d.VenueName, &d.VenueCity,
			&d.StartsAt, &d.CreatedAt, &d.UserID, &d.UserEmail,
		); err != nil {
			return nil, err
		}
		d.Tickets = []TicketPart{}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// populateTickets fills the Tickets slice of each detail with a single IN
// query instead of one query per booking.
func (r *BookingQueryRepo) populateTickets(ctx context.Context, details []*BookingDetail) error {
	ids := make([]interface{}, 0, len(details))
	placeholders := make([]string, 0, len(details))
	index := make(map[uint64]*BookingDetail, len(details))
	for _, d := range details {
		ids = append(ids, d.ID)
		placeholders = append(placeholders, "?")
		index[d.ID] = d
	}
	q := `SELECT booking_id, serial, code, status FROM tickets
	      WHERE booking_id IN (` + strings.Join(placeholders, ",") + `)
	      ORDER BY booking_id, serial`
	rows, err := r.db.QueryContext(ctx, q, ids...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var bid uint64
		var tp TicketPart
		if err := rows.Scan(&bid, &tp.Serial, &tp.Code, &tp.Status); err != nil {
			return err
		}
		if d, ok := index[bid]; ok {
			d.Tickets = append(d.Tickets, tp)
		}
	}
	return rows.Err()
}

// ExportRow is one flattened line of a user's booking history for CSV
// export.
type ExportRow struct {
	Reference        string
	SpectacleTitle   string
	VenueName        string
	StartsAt         time.Time
	BookingType      string
	SeatCount        uint32
	Status           string
	PaymentStatus    string
	TotalAmountCents uint32
	CreatedAt        time.Time
}

// ExportByUser returns the user's full booking history, oldest first, for
// the CSV export endpoint.
func (r *BookingQueryRepo) ExportByUser(ctx context.Context, userID uint64) ([]ExportRow, error) {
	q := `SELECT b.reference, sp.title, v.name, s.starts_at, b.booking_type, b.seat_count,
	             b.status, b.payment_status, b.total_amount_cents, b.created_at ` + detailJoin + `
	      WHERE b.user_id = ? ORDER BY b.created_at ASC`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]ExportRow, 0)
	for rows.Next() {
		var e ExportRow
		if err := rows.Scan(&e.Reference, &e.SpectacleTitle, &e.VenueName, &e.StartsAt,
			&e.BookingType, &e.SeatCount, &e.Status, &e.PaymentStatus, &e.TotalAmountCents, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
