package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/auth"
	"fintrack/internal/core"
)

// PasswordHasher is satisfied by auth.BcryptHasher.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

// UserService is the user directory: registration, sign-in checks and the
// placeholder accounts created for invitees.
type UserService struct {
	store  UserStore
	hasher PasswordHasher
	now    func() time.Time
	logger *slog.Logger
}

func NewUserService(store UserStore, hasher PasswordHasher) *UserService {
	return &UserService{
		store:  store,
		hasher: hasher,
		now:    time.Now,
		logger: slog.Default().With("service", "user"),
	}
}

type RegisterInput struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func (in RegisterInput) Validate() error {
	var errs []core.FieldError
	if _, err := core.NormalizeEmail(in.Email); err != nil {
		errs = append(errs, core.FieldError{Field: "email", Message: "invalid address"})
	}
	if len(in.Password) < 8 {
		errs = append(errs, core.FieldError{Field: "password", Message: "must be at least 8 characters"})
	}
	if len(in.Password) > 72 {
		errs = append(errs, core.FieldError{Field: "password", Message: "must be at most 72 bytes"})
	}
	if len(errs) > 0 {
		return &core.ValidationError{Errors: errs}
	}
	return nil
}

// Register creates an account, or claims the placeholder created when the
// address was invited to a household.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (core.User, error) {
	if err := in.Validate(); err != nil {
		return core.User{}, err
	}
	email, _ := core.NormalizeEmail(in.Email)

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return core.User{}, err
	}

	u, err := s.store.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		if u.EmailConfirmed {
			return core.User{}, core.ErrEmailTaken
		}
		u.FirstName = strings.TrimSpace(in.FirstName)
		u.LastName = strings.TrimSpace(in.LastName)
		u.PasswordHash = hash
		if err := s.store.CompleteRegistration(ctx, u); err != nil {
			return core.User{}, err
		}
		u.EmailConfirmed = true
		s.logger.InfoContext(ctx, "Placeholder user registered", "user_id", u.ID)
		return u, nil
	case !errors.Is(err, core.ErrNotFound):
		return core.User{}, err
	}

	u = core.User{
		ID:             uuid.New(),
		Email:          email,
		FirstName:      strings.TrimSpace(in.FirstName),
		LastName:       strings.TrimSpace(in.LastName),
		PasswordHash:   hash,
		EmailConfirmed: true,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return core.User{}, err
	}
	s.logger.InfoContext(ctx, "User registered", "user_id", u.ID)
	return u, nil
}

// Authenticate checks credentials. Unknown addresses, placeholders and wrong
// passwords all fail with auth.ErrInvalidCredentials.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (core.User, error) {
	email, err := core.NormalizeEmail(email)
	if err != nil {
		return core.User{}, auth.ErrInvalidCredentials
	}
	u, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, core.ErrNotFound) {
		return core.User{}, auth.ErrInvalidCredentials
	}
	if err != nil {
		return core.User{}, err
	}
	if !u.EmailConfirmed {
		return core.User{}, auth.ErrInvalidCredentials
	}
	if err := s.hasher.Compare(u.PasswordHash, password); err != nil {
		return core.User{}, auth.ErrInvalidCredentials
	}
	return u, nil
}

func (s *UserService) Get(ctx context.Context, id uuid.UUID) (core.User, error) {
	return s.store.GetUser(ctx, id)
}

func (s *UserService) FindByEmail(ctx context.Context, email string) (core.User, error) {
	return s.store.GetUserByEmail(ctx, email)
}

// CreateInvitedUser creates an unconfirmed account with an unknown random
// password for an address that was invited before registering.
func (s *UserService) CreateInvitedUser(ctx context.Context, email string) (core.User, error) {
	secret, err := auth.RandomPassword()
	if err != nil {
		return core.User{}, err
	}
	hash, err := s.hasher.Hash(secret)
	if err != nil {
		return core.User{}, err
	}
	u := core.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return core.User{}, fmt.Errorf("create invited user: %w", err)
	}
	return u, nil
}
