package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/tasktracker-be/internal/auth"
	"github.com/isdelr/tasktracker-be/internal/database"
	"github.com/isdelr/tasktracker-be/internal/models"
	"github.com/jmoiron/sqlx"
)

// UserServiceProvider defines the interface for user services.
type UserServiceProvider interface {
	Register(ctx context.Context, name, email, password string) (models.User, error)
	Authenticate(ctx context.Context, email, password string) (models.User, error)
	GetUserByID(ctx context.Context, id string) (models.User, error)
}

// UserService provides business logic for user management.
type UserService struct {
	db     *sqlx.DB
	hasher *auth.PasswordHasher
	now    func() time.Time
}

// NewUserService creates a new UserService.
func NewUserService(db *sqlx.DB, hasher *auth.PasswordHasher) *UserService {
	return &UserService{db: db, hasher: hasher, now: time.Now}
}

const userColumns = "id, name, email, password_hash, created_at, updated_at"

// GetUserByID retrieves a single user by their ID.
func (s *UserService) GetUserByID(ctx context.Context, id string) (models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user, s.db.Rebind("SELECT "+userColumns+" FROM users WHERE id = ?"), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, newError(ErrNotFound, "User not found")
		}
		return models.User{}, fmt.Errorf("get user: %w", err)
	}
	user.PasswordHash = ""
	return user, nil
}

// getUserByEmail retrieves a single user by their email, including the password hash.
func (s *UserService) getUserByEmail(ctx context.Context, email string) (models.User, bool, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user, s.db.Rebind("SELECT "+userColumns+" FROM users WHERE email = ?"), email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, false, nil
		}
		return models.User{}, false, fmt.Errorf("get user by email: %w", err)
	}
	return user, true, nil
}

// Register creates a new user, hashing their password. The unique index on
// email is the final arbiter when two registrations race.
func (s *UserService) Register(ctx context.Context, name, email, password string) (models.User, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	if name == "" || email == "" || password == "" {
		return models.User{}, newError(ErrValidation, "Name, email and password are required")
	}
	if len(password) > auth.MaxPasswordBytes {
		return models.User{}, newError(ErrValidation, "Password must be at most %d bytes", auth.MaxPasswordBytes)
	}

	if _, exists, err := s.getUserByEmail(ctx, email); err != nil {
		return models.User{}, err
	} else if exists {
		return models.User{}, newError(ErrConflict, "User with this email already exists")
	}

	hashedPassword, err := s.hasher.Hash(password)
	if err != nil {
		return models.User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now().UTC()
	user := models.User{
		ID:           uuid.New().String(),
		Name:         name,
		Email:        email,
		PasswordHash: hashedPassword,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err = s.db.NamedExecContext(ctx, `
		INSERT INTO users (id, name, email, password_hash, created_at, updated_at)
		VALUES (:id, :name, :email, :password_hash, :created_at, :updated_at)`, user)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return models.User{}, newError(ErrConflict, "User with this email already exists")
		}
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}

	// Return user without password hash
	user.PasswordHash = ""
	return user, nil
}

// Authenticate verifies a user's credentials. Unknown emails and wrong
// passwords fail identically.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (models.User, error) {
	user, exists, err := s.getUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return models.User{}, err
	}
	if !exists || !s.hasher.Verify(user.PasswordHash, password) {
		return models.User{}, newError(ErrUnauthorized, "Invalid email or password")
	}

	user.PasswordHash = ""
	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
