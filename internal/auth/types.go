package auth

import "time"

// User is a registered account. Disabled is nil when the flag was never set.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Disabled     *bool
	CreatedAt    time.Time
}

// IsDisabled reports whether the account has been explicitly disabled.
func (u *User) IsDisabled() bool {
	return u != nil && u.Disabled != nil && *u.Disabled
}

// Token is an issued access token together with its expiry.
type Token struct {
	AccessToken string
	TokenType   string
	ExpiresAt   time.Time
}
