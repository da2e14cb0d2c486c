package auth

import "context"

// CredentialStore resolves users by username. Implementations return
// ErrNotFound when no such user exists.
type CredentialStore interface {
	FindByUsername(ctx context.Context, username string) (*User, error)
}

// UserStore adds the write operations used by registration and password change.
type UserStore interface {
	CredentialStore
	// Create inserts u and fills its ID and CreatedAt. A taken username
	// yields ErrUserExists.
	Create(ctx context.Context, u *User) error
	UpdatePassword(ctx context.Context, username, passwordHash string) error
}
