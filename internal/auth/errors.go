package auth

import "errors"

var (
	ErrNotFound     = errors.New("auth: not found")
	ErrUserExists   = errors.New("auth: user already exists")
	ErrInvalidInput = errors.New("auth: invalid input")

	// Authentication failures. Transports translate these into 401 responses.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrInvalidToken       = errors.New("auth: invalid token")
	ErrExpiredToken       = errors.New("auth: token expired")
	ErrTokenRevoked       = errors.New("auth: token revoked")
	ErrUnknownSubject     = errors.New("auth: unknown subject")
)

// IsAuthFailure reports whether err is one of the authentication failures
// rather than an infrastructure error.
func IsAuthFailure(err error) bool {
	return errors.Is(err, ErrInvalidCredentials) ||
		errors.Is(err, ErrInvalidToken) ||
		errors.Is(err, ErrExpiredToken) ||
		errors.Is(err, ErrTokenRevoked) ||
		errors.Is(err, ErrUnknownSubject)
}
