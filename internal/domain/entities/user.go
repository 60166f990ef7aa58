package entities

import (
	"time"
)

// Role is the typed capability set of a user identity
type Role string

const (
	RoleCustomer Role = "customer"
	RoleVerifier Role = "verifier"
	RoleAdmin    Role = "admin"
)

// User represents an identity known to the pharmacy backend. Registration and
// authentication live outside this core; only the identity and role matter here.
type User struct {
	ID        string    `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	FullName  string    `json:"full_name" db:"full_name"`
	Phone     string    `json:"phone,omitempty" db:"phone"`
	Role      Role      `json:"role" db:"role"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// IsVerifier reports whether the user holds the verifier capability
func (u *User) IsVerifier() bool {
	return u.IsActive && (u.Role == RoleVerifier || u.Role == RoleAdmin)
}
