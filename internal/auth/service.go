package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultAccessTTL is the lifetime of tokens issued at login.
	DefaultAccessTTL = 30 * time.Minute
	// TokenTypeBearer is reported alongside issued tokens.
	TokenTypeBearer = "bearer"

	maxUsernameLength = 64
)

// Service issues, validates and revokes access tokens.
type Service struct {
	users       UserStore
	revocations RevocationCache
	codec       *Codec
	now         func() time.Time
	accessTTL   time.Duration
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service) error

// WithAccessTTL configures access token lifetime.
func WithAccessTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) error {
		if ttl < 0 {
			return fmt.Errorf("auth: access ttl must not be negative, got %s", ttl)
		}
		if ttl > 0 {
			s.accessTTL = ttl
		}
		return nil
	}
}

// WithClock overrides the time source of the service and of its codec.
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
			s.codec = s.codec.WithClock(fn)
		}
		return nil
	}
}

// NewService constructs Service with optional configuration.
func NewService(users UserStore, revocations RevocationCache, codec *Codec, opts ...ServiceOption) (*Service, error) {
	if users == nil || revocations == nil || codec == nil {
		return nil, errors.New("auth: user store, revocation cache and codec are required")
	}
	svc := &Service{
		users:       users,
		revocations: revocations,
		codec:       codec,
		now:         time.Now,
		accessTTL:   DefaultAccessTTL,
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	return svc, nil
}

// AccessTTL returns the lifetime applied to tokens issued at login.
func (s *Service) AccessTTL() time.Duration { return s.accessTTL }

// Register creates a new user after validating the username and password.
func (s *Service) Register(ctx context.Context, username, password string) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" || len(username) > maxUsernameLength {
		return nil, fmt.Errorf("%w: username must be between 1 and %d characters", ErrInvalidInput, maxUsernameLength)
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &User{Username: username, PasswordHash: hash, CreatedAt: s.now().UTC()}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Authenticate checks credentials and issues an access token. Unknown users,
// disabled users and wrong passwords all yield ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, username, password string) (Token, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return Token{}, ErrInvalidCredentials
	}
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Token{}, ErrInvalidCredentials
		}
		return Token{}, fmt.Errorf("lookup user: %w", err)
	}
	if user.IsDisabled() || !VerifyPassword(password, user.PasswordHash) {
		return Token{}, ErrInvalidCredentials
	}
	return s.IssueToken(user.Username, s.accessTTL)
}

// IssueToken mints a token for username without checking credentials.
func (s *Service) IssueToken(username string, ttl time.Duration) (Token, error) {
	signed, expiresAt, err := s.codec.Issue(username, ttl)
	if err != nil {
		return Token{}, err
	}
	return Token{AccessToken: signed, TokenType: TokenTypeBearer, ExpiresAt: expiresAt}, nil
}

// ValidateRequest resolves the user a token was issued for. Revocation is
// checked before the signature, then the subject is looked up.
func (s *Service) ValidateRequest(ctx context.Context, token string) (*User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	revoked, err := s.revocations.IsRevoked(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return nil, ErrTokenRevoked
	}
	claims, err := s.codec.Decode(token)
	if err != nil {
		return nil, err
	}
	user, err := s.users.FindByUsername(ctx, claims.Username())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidToken, ErrUnknownSubject)
		}
		return nil, fmt.Errorf("lookup subject: %w", err)
	}
	if user.IsDisabled() {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, ErrUnknownSubject)
	}
	return user, nil
}

// Logout revokes token until its natural expiry. Already expired tokens
// need no marker, and revoking twice is not an error.
func (s *Service) Logout(ctx context.Context, token string) error {
	claims, err := s.codec.Inspect(token)
	if err != nil {
		return ErrInvalidToken
	}
	remaining := claims.Expiry().Sub(s.now())
	if remaining <= 0 {
		return nil
	}
	if err := s.revocations.MarkRevoked(ctx, strings.TrimSpace(token), remaining); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// ChangePassword replaces the password of username after verifying the
// current one.
func (s *Service) ChangePassword(ctx context.Context, username, oldPassword, newPassword string) error {
	if oldPassword == newPassword {
		return fmt.Errorf("%w: new password must differ from the current one", ErrInvalidInput)
	}
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrInvalidCredentials
		}
		return fmt.Errorf("lookup user: %w", err)
	}
	if !VerifyPassword(oldPassword, user.PasswordHash) {
		return ErrInvalidCredentials
	}
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.users.UpdatePassword(ctx, user.Username, hash)
}
