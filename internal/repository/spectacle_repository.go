package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/petitrideau/theatre-ticket-reservation/internal/model"
)

// ErrSpectacleNotFound is returned when a spectacle cannot be found in the DB.
var ErrSpectacleNotFound = errors.New("spectacle not found")

// SpectacleRepo encapsulates all database queries related to spectacles.
type SpectacleRepo struct {
	db *sql.DB
}

// NewSpectacleRepo constructs a SpectacleRepo with the provided DB handle.
func NewSpectacleRepo(db *sql.DB) *SpectacleRepo {
	return &SpectacleRepo{db: db}
}

const spectacleCols = "id, title, description, age_min, age_max, is_active, created_at, updated_at"

func scanSpectacle(row interface{ Scan(...any) error }, s *model.Spectacle) error {
	return row.Scan(&s.ID, &s.Title, &s.Description, &s.AgeMin, &s.AgeMax, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
}

// Create inserts a new spectacle.  On success the ID field is populated and
// a follow-up SELECT fills the DB-default timestamp fields.
func (r *SpectacleRepo) Create(ctx context.Context, s *model.Spectacle) error {
	const q = "INSERT INTO spectacles (title, description, age_min, age_max) VALUES (?, ?, ?, ?)"
	res, err := r.db.ExecContext(ctx, q, s.Title, s.Description, s.AgeMin, s.AgeMax)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	const sel = "SELECT " + spectacleCols + " FROM spectacles WHERE id = ?"
	return scanSpectacle(r.db.QueryRowContext(ctx, sel, s.ID), s)
}

// GetByID fetches a spectacle by its ID.  Returns ErrSpectacleNotFound if no
// row is found.
func (r *SpectacleRepo) GetByID(ctx context.Context, id uint64) (*model.Spectacle, error) {
	const q = "SELECT " + spectacleCols + " FROM spectacles WHERE id = ?"
	var s model.Spectacle
	if err := scanSpectacle(r.db.QueryRowContext(ctx, q, id), &s); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSpectacleNotFound
		}
		return nil, err
	}
	return &s, nil
}

// ListActive returns every active spectacle for the public catalogue.
func (r *SpectacleRepo) ListActive(ctx context.Context) ([]model.Spectacle, error) {
	const q = "SELECT " + spectacleCols + " FROM spectacles WHERE is_active = 1 ORDER BY title ASC"
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Spectacle, 0)
	for rows.Next() {
		var s model.Spectacle
		if err := scanSpectacle(rows, &s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Update rewrites a spectacle's editable fields.  Returns
// ErrSpectacleNotFound when the row does not exist.
func (r *SpectacleRepo) Update(ctx context.Context, s *model.Spectacle) error {
	const q = `UPDATE spectacles
	           SET title = ?, description = ?, age_min = ?, age_max = ?, is_active = ?, updated_at = CURRENT_TIMESTAMP
	           WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, s.Title, s.Description, s.AgeMin, s.AgeMax, s.IsActive, s.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var one int
		err = r.db.QueryRowContext(ctx, "SELECT 1 FROM spectacles WHERE id = ? LIMIT 1", s.ID).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrSpectacleNotFound
		}
		return err
	}
	return nil
}

// Deactivate retires a spectacle from the catalogue without deleting its
// history.  Sessions already scheduled keep running; only new scheduling is
// blocked at the handler level.
func (r *SpectacleRepo) Deactivate(ctx context.Context, id uint64) error {
	const q = "UPDATE spectacles SET is_active = 0 WHERE id = ? AND is_active = 1"
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSpectacleNotFound
	}
	return nil
}
