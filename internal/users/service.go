package users

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
)

// Store is the account persistence used by Service.
type Store interface {
	List(ctx context.Context, role Role) ([]User, error)
	Get(ctx context.Context, id string) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	Create(ctx context.Context, u User) (User, error)
	Update(ctx context.Context, id, fullName, email, passwordHash string) (User, error)
	Delete(ctx context.Context, id string) error
	CountByRole(ctx context.Context, role Role) (int, error)
}

// Service validates account changes and hashes passwords.
type Service struct {
	store    Store
	validate *validator.Validate
	cost     int
}

// NewService creates an account service. cost is the bcrypt cost; zero
// selects bcrypt.DefaultCost.
func NewService(store Store, cost int) *Service {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Service{store: store, validate: validator.New(), cost: cost}
}

// List returns accounts, optionally of one role.
func (s *Service) List(ctx context.Context, role Role) ([]User, error) {
	if role != "" && !role.Valid() {
		return nil, &ValidationError{Field: "Role", Message: "role is invalid"}
	}
	return s.store.List(ctx, role)
}

// Get returns one account.
func (s *Service) Get(ctx context.Context, id string) (User, error) {
	return s.store.Get(ctx, id)
}

// Create registers a new account.
func (s *Service) Create(ctx context.Context, in CreateInput) (User, error) {
	in.Email = normalizeEmail(in.Email)
	in.FullName = strings.TrimSpace(in.FullName)
	if err := s.check(in); err != nil {
		return User{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return User{}, err
	}
	return s.store.Create(ctx, User{
		Email:        in.Email,
		FullName:     in.FullName,
		Role:         in.Role,
		PasswordHash: string(hash),
	})
}

// Update changes an account's name and optionally its email and password.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (User, error) {
	in.Email = normalizeEmail(in.Email)
	in.FullName = strings.TrimSpace(in.FullName)
	if err := s.check(in); err != nil {
		return User{}, err
	}
	var hash string
	if in.Password != "" {
		b, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
		if err != nil {
			return User{}, err
		}
		hash = string(b)
	}
	return s.store.Update(ctx, id, in.FullName, in.Email, hash)
}

// Delete removes an account and, through the schema, its attendance.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}

// CountByRole returns the number of accounts holding role.
func (s *Service) CountByRole(ctx context.Context, role Role) (int, error) {
	return s.store.CountByRole(ctx, role)
}

// Authenticate returns the account whose password matches.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	u, err := s.store.GetByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, ErrNotFound) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}

func (s *Service) check(in any) error {
	err := s.validate.Struct(in)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return err
	}
	fe := ve[0]
	return &ValidationError{Field: fe.Field(), Message: messageFor(fe)}
}

func messageFor(fe validator.FieldError) string {
	switch fe.Field() {
	case "Email":
		return "email is invalid"
	case "Password":
		return "password must be between 8 and 72 characters"
	case "FullName":
		if fe.Tag() == "required" {
			return "full name is required"
		}
		return "full name must be at most 120 characters"
	case "Role":
		return "role must be teacher, admin or principal"
	}
	return "invalid input"
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
