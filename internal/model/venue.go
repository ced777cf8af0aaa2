package model

import "time"

// Venue is a physical location where sessions take place.
type Venue struct {
	ID        uint64    // venues.id
	Name      string    // venues.name
	Address   string    // venues.address
	City      string    // venues.city
	CreatedAt time.Time // venues.created_at
	UpdatedAt time.Time // venues.updated_at
}
