package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"staffattendance/internal/users"
)

// ErrTokenRevoked is returned when a refresh token was already used, revoked
// or has expired server side.
var ErrTokenRevoked = errors.New("refresh token revoked")

// TokenStore persists issued refresh tokens so they can be rotated and revoked.
type TokenStore interface {
	Save(ctx context.Context, userID, token string, expiresAt time.Time) error
	// Consume revokes a live token and returns its owner. It returns
	// ErrTokenRevoked when the token is unknown, revoked or expired.
	Consume(ctx context.Context, token string) (string, error)
	Revoke(ctx context.Context, token string) error
}

// Accounts is the account lookup the auth service needs.
type Accounts interface {
	Authenticate(ctx context.Context, email, password string) (users.User, error)
	Get(ctx context.Context, id string) (users.User, error)
}

// Options configures token issuing.
type Options struct {
	Issuer     string
	SigningKey string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Session is a successful login or refresh.
type Session struct {
	Tokens TokenPair  `json:"tokens"`
	User   users.User `json:"user"`
}

// Service logs accounts in and rotates their refresh tokens.
type Service struct {
	accounts Accounts
	tokens   TokenStore
	opts     Options
}

// NewService creates an auth service.
func NewService(accounts Accounts, tokens TokenStore, opts Options) *Service {
	return &Service{accounts: accounts, tokens: tokens, opts: opts}
}

// Login verifies credentials and issues a token pair.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	u, err := s.accounts.Authenticate(ctx, email, password)
	if err != nil {
		return Session{}, err
	}
	return s.issue(ctx, u)
}

// Refresh exchanges a refresh token for a new pair and revokes the old one.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	claims, err := ParseKind(refreshToken, s.opts.SigningKey, s.opts.Issuer, KindRefresh)
	if err != nil {
		return Session{}, err
	}
	owner, err := s.tokens.Consume(ctx, refreshToken)
	if err != nil {
		return Session{}, err
	}
	if owner != claims.Subject {
		return Session{}, ErrInvalidToken
	}
	u, err := s.accounts.Get(ctx, owner)
	if err != nil {
		return Session{}, err
	}
	return s.issue(ctx, u)
}

// Logout revokes a refresh token. Unknown tokens are ignored.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	return s.tokens.Revoke(ctx, refreshToken)
}

func (s *Service) issue(ctx context.Context, u users.User) (Session, error) {
	pair, err := Issue(u.ID, string(u.Role), u.FullName, s.opts.Issuer, s.opts.SigningKey, s.opts.AccessTTL, s.opts.RefreshTTL)
	if err != nil {
		return Session{}, fmt.Errorf("issue tokens: %w", err)
	}
	if err := s.tokens.Save(ctx, u.ID, pair.RefreshToken, pair.RefreshExp); err != nil {
		return Session{}, err
	}
	return Session{Tokens: pair, User: u}, nil
}

// TokenRepository stores refresh tokens in Postgres.
type TokenRepository struct {
	db *sql.DB
}

// NewTokenRepository creates a repo.
func NewTokenRepository(db *sql.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// Save stores a refresh token for rotation checks.
func (r *TokenRepository) Save(ctx context.Context, userID, token string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (token, user_id, expires_at)
		VALUES ($1, $2, $3)
	`, token, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("save refresh token: %w", err)
	}
	return nil
}

// Consume marks a live token revoked and returns its owner.
func (r *TokenRepository) Consume(ctx context.Context, token string) (string, error) {
	var userID string
	err := r.db.QueryRowContext(ctx, `
		UPDATE refresh_tokens SET revoked = TRUE
		WHERE token = $1 AND revoked = FALSE AND expires_at > NOW()
		RETURNING user_id
	`, token).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrTokenRevoked
	}
	if err != nil {
		return "", fmt.Errorf("consume refresh token: %w", err)
	}
	return userID, nil
}

// Revoke marks a token revoked.
func (r *TokenRepository) Revoke(ctx context.Context, token string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE refresh_tokens SET revoked = TRUE WHERE token = $1`, token); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}
