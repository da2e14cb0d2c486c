package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// DefaultTokenTTL applies when Issue is called with a zero lifetime.
	DefaultTokenTTL = 15 * time.Minute
	// DefaultAlgorithm is the signing algorithm used when none is configured.
	DefaultAlgorithm = "HS256"

	minSecretLength = 5
)

// Claims represents JWT claims carried by access tokens.
type Claims struct {
	jwt.RegisteredClaims
}

// Username returns the subject the token was issued for.
func (c *Claims) Username() string { return c.Subject }

// Expiry returns the absolute expiry time, or the zero time when absent.
func (c *Claims) Expiry() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// Codec signs and verifies access tokens with a shared HMAC secret.
type Codec struct {
	secret    []byte
	method    *jwt.SigningMethodHMAC
	now       func() time.Time
	verifier  *jwt.Parser
	inspector *jwt.Parser
}

// CodecOption configures Codec behavior.
type CodecOption func(*Codec)

// WithCodecClock overrides the time source used for issuing and expiry checks.
func WithCodecClock(fn func() time.Time) CodecOption {
	return func(c *Codec) {
		if fn != nil {
			c.now = fn
		}
	}
}

// NewCodec builds a Codec for one of the HMAC algorithms (HS256, HS384, HS512).
func NewCodec(secret, algorithm string, opts ...CodecOption) (*Codec, error) {
	if len(strings.TrimSpace(secret)) < minSecretLength {
		return nil, fmt.Errorf("auth: secret must be at least %d characters", minSecretLength)
	}
	algorithm = strings.ToUpper(strings.TrimSpace(algorithm))
	if algorithm == "" {
		algorithm = DefaultAlgorithm
	}
	method, ok := jwt.GetSigningMethod(algorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("auth: unsupported signing algorithm %q", algorithm)
	}
	c := &Codec{
		secret: []byte(secret),
		method: method,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.buildParsers()
	return c, nil
}

// WithClock returns a copy of c that issues and checks expiry against fn.
func (c *Codec) WithClock(fn func() time.Time) *Codec {
	if fn == nil {
		return c
	}
	cp := &Codec{secret: c.secret, method: c.method, now: fn}
	cp.buildParsers()
	return cp
}

func (c *Codec) buildParsers() {
	methods := []string{c.method.Alg()}
	c.verifier = jwt.NewParser(
		jwt.WithValidMethods(methods),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
	)
	c.inspector = jwt.NewParser(
		jwt.WithValidMethods(methods),
		jwt.WithoutClaimsValidation(),
	)
}

// Algorithm returns the configured signing algorithm name.
func (c *Codec) Algorithm() string { return c.method.Alg() }

// Issue signs a token for subject that expires after ttl. A zero ttl falls
// back to DefaultTokenTTL; a negative ttl yields an already expired token.
func (c *Codec) Issue(subject string, ttl time.Duration) (string, time.Time, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", time.Time{}, errors.New("auth: subject is required")
	}
	if ttl == 0 {
		ttl = DefaultTokenTTL
	}
	now := c.now().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(c.method, claims).SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, claims.ExpiresAt.Time, nil
}

// Decode verifies signature, structure and expiry. It returns ErrExpiredToken
// for a well formed token past its expiry and ErrInvalidToken otherwise.
func (c *Codec) Decode(token string) (*Claims, error) {
	claims, err := c.parse(c.verifier, token)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Inspect verifies signature and structure without checking expiry.
func (c *Codec) Inspect(token string) (*Claims, error) {
	claims, err := c.parse(c.inspector, token)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if claims.ExpiresAt == nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (c *Codec) parse(parser *jwt.Parser, token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	parsed, err := parser.ParseWithClaims(token, &Claims{}, func(*jwt.Token) (any, error) {
		return c.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
