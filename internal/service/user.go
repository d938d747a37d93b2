// Package service contains the business logic layer.
//
// Services validate input, enforce business rules and translate storage
// errors into domain errors. Handlers only talk to services.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/DukeRupert/prefork/internal/domain"
	"github.com/DukeRupert/prefork/internal/form"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/crypto/bcrypt"
)

// =============================================================================
// Configuration Constants
// =============================================================================

const (
	// BcryptCost is the cost factor for bcrypt password hashing.
	// Cost 12 is ~250ms on modern hardware, acceptable for login flows.
	BcryptCost = 12

	// dummyHash is compared against when the email is unknown, so that a
	// failed login takes as long as a wrong password.
	dummyHash = "$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW"
)

// =============================================================================
// Interface Definition
// =============================================================================

// UserService defines the user operations the HTTP layer needs.
type UserService interface {
	// Register creates a new user account.
	// Returns domain.ECONFLICT if email already exists.
	// Returns domain.EINVALID for validation errors.
	Register(ctx context.Context, params domain.RegisterParams) (*domain.User, error)

	// Authenticate checks credentials.
	// Returns domain.EUNAUTHORIZED for invalid credentials.
	Authenticate(ctx context.Context, email, password string) (*domain.User, error)

	// GetByID retrieves a user by their ID.
	// Returns domain.ENOTFOUND if user does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

// UserServiceConfig tunes the user service.
type UserServiceConfig struct {
	// BcryptCost overrides BcryptCost. Zero uses the default.
	BcryptCost int
	Clock      clockwork.Clock
}

// =============================================================================
// Implementation
// =============================================================================

type userService struct {
	repo   UserRepository
	logger *slog.Logger
	cost   int
	clock  clockwork.Clock
}

// NewUserService creates a new UserService backed by repo.
func NewUserService(repo UserRepository, logger *slog.Logger, cfg UserServiceConfig) UserService {
	cost := cfg.BcryptCost
	if cost == 0 {
		cost = BcryptCost
	}
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &userService{
		repo:   repo,
		logger: logger,
		cost:   cost,
		clock:  clock,
	}
}

func (s *userService) Register(ctx context.Context, params domain.RegisterParams) (*domain.User, error) {
	const op = "UserService.Register"

	params.Email = normalizeEmail(params.Email)
	params.Name = strings.TrimSpace(params.Name)

	if err := validateEmail(params.Email); err != nil {
		return nil, err.withOp(op)
	}
	if params.Name == "" {
		return nil, domain.NewValidationError(op, form.FieldName, "Name is required")
	}
	if err := validatePassword(params.Password); err != nil {
		return nil, err.withOp(op)
	}

	_, err := s.repo.GetByEmail(ctx, params.Email)
	if err == nil {
		// Hash anyway so that taken and free emails respond alike.
		_, _ = bcrypt.GenerateFromPassword([]byte(params.Password), s.cost)
		return nil, domain.Conflict(op, "Email already registered")
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, domain.Internal(err, op, "Failed to check email availability")
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(params.Password), s.cost)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to hash password")
	}

	user := &domain.User{
		ID:           uuid.New(),
		Email:        params.Email,
		Name:         params.Name,
		PasswordHash: string(passwordHash),
		CreatedAt:    s.clock.Now(),
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, domain.Conflict(op, "Email already registered")
		}
		return nil, domain.Internal(err, op, "Failed to create user")
	}

	s.logger.Info("user registered", "user_id", user.ID, "email", user.Email)

	return withoutHash(user), nil
}

func (s *userService) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	const op = "UserService.Authenticate"

	email = normalizeEmail(email)

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
			return nil, domain.Unauthorized(op, "Invalid email or password")
		}
		return nil, domain.Internal(err, op, "Failed to retrieve user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, domain.Unauthorized(op, "Invalid email or password")
	}

	s.logger.Info("user logged in", "user_id", user.ID)

	return withoutHash(user), nil
}

func (s *userService) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	const op = "UserService.GetByID"

	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, domain.NotFound(op, "user", id.String())
		}
		return nil, domain.Internal(err, op, "Failed to retrieve user")
	}
	return withoutHash(user), nil
}

// =============================================================================
// Helpers
// =============================================================================

// fieldError is a single-field validation failure awaiting its op.
type fieldError struct {
	field   string
	message string
}

func (e *fieldError) withOp(op string) *domain.ValidationError {
	return domain.NewValidationError(op, e.field, e.message)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) *fieldError {
	if email == "" {
		return &fieldError{form.FieldEmail, "Email is required"}
	}
	if !form.IsEmail(email) {
		return &fieldError{form.FieldEmail, "Email address is invalid"}
	}
	return nil
}

func validatePassword(password string) *fieldError {
	if len(password) < form.MinPasswordLength {
		return &fieldError{form.FieldPassword, "Password must be at least 8 characters"}
	}
	if len(password) > form.MaxPasswordLength {
		return &fieldError{form.FieldPassword, "Password must be 72 characters or less"}
	}
	return nil
}

// withoutHash returns a copy safe to hand to callers.
func withoutHash(u *domain.User) *domain.User {
	out := *u
	out.PasswordHash = ""
	return &out
}
