//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import (
	"errors"
	"net/mail"
	"strings"
	"time"

	domainauth "github.com/target/powra-portal/internal/domain/auth"
)

// User is a portal account row. Role is the stored column value and may use the
// legacy "manager" spelling; use domainauth.ParseRole to interpret it.
type User struct {
	ID        string    `json:"id"         db:"id"`
	Email     string    `json:"email"      db:"email"`
	FirstName string    `json:"first_name" db:"first_name"`
	LastName  string    `json:"last_name"  db:"last_name"`
	Role      string    `json:"role"       db:"role"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// UsersListOptions controls paging and filtering for listing users.
// Q matches email or name via ILIKE substring; Role matches the canonical role
// and its legacy alias. Sort is one of email, created_at, role (default email).
type UsersListOptions struct {
	Limit  int
	Offset int
	Q      *string
	Role   *domainauth.Role
	Sort   string
	Dir    string
}

// UpsertUserRequest creates or updates a user by ID.
type UpsertUserRequest struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
}

// Normalize trims fields, lowercases the email, and canonicalizes the role.
func (r *UpsertUserRequest) Normalize() {
	r.ID = strings.TrimSpace(r.ID)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	if role, ok := domainauth.ParseRole(r.Role); ok {
		r.Role = role.String()
	}
}

// Validate checks required fields. Call Normalize first.
func (r *UpsertUserRequest) Validate() error {
	if r.ID == "" {
		return errors.New("id is required")
	}
	if r.Email == "" {
		return errors.New("email is required")
	}
	if _, err := mail.ParseAddress(r.Email); err != nil {
		return errors.New("email is invalid")
	}
	if _, ok := domainauth.ParseRole(r.Role); !ok {
		return errors.New("role must be one of admin, supervisor, user")
	}
	return nil
}
