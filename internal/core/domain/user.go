package domain

import "time"

// Role enumerates the account roles recognised by the storefront.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Valid reports whether the role is one of the closed set.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin:
		return true
	}
	return false
}

// User mirrors the persisted representation in the users table.
type User struct {
	ID               string
	Email            string
	PasswordHash     string
	FirstName        string
	LastName         string
	Phone            *string
	DateOfBirth      *time.Time
	AvatarURL        *string
	Role             Role
	IsVerified       bool
	ProviderID       *string
	RefreshTokenHash *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	LastLogin        *time.Time
}

// Sanitized returns a copy safe to expose through the API.
func (u User) Sanitized() User {
	u.PasswordHash = ""
	u.RefreshTokenHash = nil
	return u
}
