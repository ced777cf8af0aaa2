package model

import "time"

// Roles stored in users.role and carried in the JWT "role" claim.
const (
	RoleCustomer = "CUSTOMER"
	RoleAdmin    = "ADMIN"
)

// User mirrors the users table.  BookerType records the category chosen
// during registration (individual vs. the institutional categories) and
// feeds the eligibility check when the user books a session.
type User struct {
	ID           uint64      // users.id
	Email        string      // users.email
	PasswordHash string      // users.password_hash
	Role         string      // users.role
	BookerType   BookingType // users.booker_type
	IsActive     bool        // users.is_active
	CreatedAt    time.Time   // users.created_at
	UpdatedAt    time.Time   // users.updated_at
}
