package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/petitrideau/theatre-ticket-reservation/internal/model"
)

// ErrVenueNotFound is returned when a venue cannot be found in the DB.
var ErrVenueNotFound = errors.New("venue not found")

// VenueRepo encapsulates all database queries related to venues.
type VenueRepo struct {
	db *sql.DB
}

// NewVenueRepo constructs a VenueRepo with the provided DB handle.
func NewVenueRepo(db *sql.DB) *VenueRepo {
	return &VenueRepo{db: db}
}

const venueCols = "id, name, address, city, created_at, updated_at"

func scanVenue(row interface{ Scan(...any) error }, v *model.Venue) error {
	return row.Scan(&v.ID, &v.Name, &v.Address, &v.City, &v.CreatedAt, &v.UpdatedAt)
}

// Create inserts a new venue and populates the generated ID and timestamps.
func (r *VenueRepo) Create(ctx context.Context, v *model.Venue) error {
	const q = "INSERT INTO venues (name, address, city) VALUES (?, ?, ?)"
	res, err := r.db.ExecContext(ctx, q, v.Name, v.Address, v.City)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	v.ID = uint64(id)
	const sel = "SELECT " + venueCols + " FROM venues WHERE id = ?"
	return scanVenue(r.db.QueryRowContext(ctx, sel, v.ID), v)
}

// GetByID fetches a venue by its ID, ErrVenueNotFound when absent.
func (r *VenueRepo) GetByID(ctx context.Context, id uint64) (*model.Venue, error) {
	const q = "SELECT " + venueCols + " FROM venues WHERE id = ?"
	var v model.Venue
	if err := scanVenue(r.db.QueryRowContext(ctx, q, id), &v); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrVenueNotFound
		}
		return nil, err
	}
	return &v, nil
}

// List returns all venues ordered by city then name.
func (r *VenueRepo) List(ctx context.Context) ([]model.Venue, error) {
	const q = "SELECT " + venueCols + " FROM venues ORDER BY city ASC, name ASC"
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Venue, 0)
	for rows.Next() {
		var v model.Venue
		if err := scanVenue(rows, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Update rewrites a venue's fields, ErrVenueNotFound when the row is absent.
func (r *VenueRepo) Update(ctx context.Context, v *model.Venue) error {
	const q = "UPDATE venues SET name = ?, address = ?, city = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?"
	res, err := r.db.ExecContext(ctx, q, v.Name, v.Address, v.City, v.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var one int
		err = r.db.QueryRowContext(ctx, "SELECT 1 FROM venues WHERE id = ? LIMIT 1", v.ID).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrVenueNotFound
		}
		return err
	}
	return nil
}

// Delete removes a venue.  Sessions reference venues with a foreign key, so
// a venue with history fails the delete; that surfaces as ErrConflict.
func (r *VenueRepo) Delete(ctx context.Context, id uint64) error {
	const q = "DELETE FROM venues WHERE id = ?"
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return ErrConflict
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrVenueNotFound
	}
	return nil
}
