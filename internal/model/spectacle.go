package model

import "time"

// Spectacle is one production of the theatre network.  Sessions reference a
// spectacle; the marketing copy lives elsewhere, only scheduling metadata is
// kept here.
type Spectacle struct {
	ID          uint64    // spectacles.id
	Title       string    // spectacles.title
	Description string    // spectacles.description
	AgeMin      uint8     // spectacles.age_min, advisory lower bound
	AgeMax      uint8     // spectacles.age_max, advisory upper bound
	IsActive    bool      // spectacles.is_active
	CreatedAt   time.Time // spectacles.created_at
	UpdatedAt   time.Time // spectacles.updated_at
}
