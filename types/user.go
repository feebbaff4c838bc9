package types

import (
	"time"

	"github.com/google/uuid"
)

// User represents an account in the system.
type User struct {
	// ID is the unique identifier of the user, generated at creation.
	ID uuid.UUID `json:"id" db:"id"`

	// Email is the login key. It is unique across all users and compared
	// as an exact string.
	Email string `json:"email" db:"email"`

	// PasswordHash stores the bcrypt hash of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// Identity is the verified caller of a request, produced by token
// verification and passed explicitly into service calls.
type Identity struct {
	UserID uuid.UUID
	Email  string
}
