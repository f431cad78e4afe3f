/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package admin authenticates curators of the daily word. Passwords are
// stored as bcrypt hashes and sessions are HS256 bearer tokens.
package admin

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/Seednode/yementuel/internal/store"
)

const (
	DefaultTokenTTL = 24 * time.Hour
	issuer          = "yementuel"
)

var (
	// ErrInvalidCredentials hides whether the username or the password was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrEmptySecret        = errors.New("jwt secret must not be empty")
)

// Claims is the token payload. Subject holds the username.
type Claims struct {
	jwt.RegisteredClaims
}

// Username returns the authenticated admin.
func (c *Claims) Username() string {
	return c.Subject
}

// Authenticator checks admin credentials and issues tokens.
type Authenticator struct {
	db     store.DBExecutor
	secret []byte
	ttl    time.Duration
	cost   int
	now    func() time.Time
}

// Option configures an Authenticator.
type Option func(*Authenticator)

// WithTokenTTL sets how long issued tokens stay valid.
func WithTokenTTL(d time.Duration) Option {
	return func(a *Authenticator) {
		a.ttl = d
	}
}

// WithCost sets the bcrypt cost for seeded passwords.
func WithCost(cost int) Option {
	return func(a *Authenticator) {
		a.cost = cost
	}
}

// WithClock sets the clock used for issuing and checking tokens.
func WithClock(now func() time.Time) Option {
	return func(a *Authenticator) {
		a.now = now
	}
}

// New returns an authenticator signing with secret.
func New(db store.DBExecutor, secret string, opts ...Option) (*Authenticator, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}

	a := &Authenticator{
		db:     db,
		secret: []byte(secret),
		ttl:    DefaultTokenTTL,
		cost:   bcrypt.DefaultCost,
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(a)
	}

	return a, nil
}

// SeedDefault creates the admin account when none exists yet. It reports
// whether an account was created.
func (a *Authenticator) SeedDefault(ctx context.Context, username, password string) (bool, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return false, errors.New("admin username and password are required")
	}

	var count int
	if err := a.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM admin_users`).Scan(&count); err != nil {
		return false, fmt.Errorf("count admins: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.cost)
	if err != nil {
		return false, fmt.Errorf("hash password: %w", err)
	}

	_, err = a.db.ExecContext(ctx,
		`INSERT INTO admin_users (username, password_hash, created_at) VALUES (?, ?, ?)`,
		username, string(hash), a.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return false, fmt.Errorf("insert admin: %w", err)
	}

	return true, nil
}

// Login checks username and password and returns a signed token.
func (a *Authenticator) Login(ctx context.Context, username, password string) (string, error) {
	var hash string

	err := a.db.QueryRowContext(ctx,
		`SELECT password_hash FROM admin_users WHERE username = ?`,
		strings.TrimSpace(username)).Scan(&hash)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", ErrInvalidCredentials
	case err != nil:
		return "", fmt.Errorf("load admin: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return "", ErrInvalidCredentials
	}

	now := a.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   strings.TrimSpace(username),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}

// Verify parses token and returns its claims. Every failure is reported as
// ErrUnauthorized, wrapping the parser's reason.
func (a *Authenticator) Verify(token string) (*Claims, error) {
	var claims Claims

	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrUnauthorized)
	}

	return &claims, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}

	token = strings.TrimSpace(token)

	return token, token != ""
}
