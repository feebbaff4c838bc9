package services

import "errors"

var (
	// ErrEmailTaken is returned when registering an email that already exists.
	ErrEmailTaken = errors.New("email already registered")

	// ErrInvalidCredentials covers unknown emails and wrong passwords alike.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrInvalidInput is returned for missing or malformed request fields.
	ErrInvalidInput = errors.New("invalid input")

	// ErrPasswordTooLong wraps ErrInvalidInput for passwords bcrypt cannot hash.
	ErrPasswordTooLong = errors.New("password must be at most 72 bytes")

	// ErrInvalidToken is returned for bad, expired or unsigned tokens.
	ErrInvalidToken = errors.New("invalid token")

	// ErrEmptyFile is returned when an upload carries no file bytes.
	ErrEmptyFile = errors.New("file is required")

	ErrNotFound = errors.New("not found")
)
