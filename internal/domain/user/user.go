package user

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Kilat-Parking/service-parking/pkg/auth"
	"github.com/Kilat-Parking/service-parking/pkg/domain"
)

// User is an account that can book spots, or administer lots when its role is admin.
type User struct {
	id           uuid.UUID
	name         string
	email        string
	passwordHash string
	role         string
	createdAt    time.Time
	updatedAt    time.Time
}

// NewUser creates a user with an already hashed password.
func NewUser(name, email, passwordHash, role string) (*User, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if role == "" {
		role = auth.RoleUser
	}

	var fields []domain.FieldError
	if name == "" {
		fields = append(fields, domain.FieldError{Field: "name", Message: "is required"})
	}
	if _, err := mail.ParseAddress(email); err != nil {
		fields = append(fields, domain.FieldError{Field: "email", Message: "must be a valid email address"})
	}
	if passwordHash == "" {
		fields = append(fields, domain.FieldError{Field: "password", Message: "is required"})
	}
	if role != auth.RoleUser && role != auth.RoleAdmin {
		fields = append(fields, domain.FieldError{Field: "role", Message: "must be one of [user admin]"})
	}
	if len(fields) > 0 {
		return nil, domain.NewFieldValidationError(fields...)
	}

	now := time.Now().UTC()
	return &User{
		id:           uuid.New(),
		name:         name,
		email:        email,
		passwordHash: passwordHash,
		role:         role,
		createdAt:    now,
		updatedAt:    now,
	}, nil
}

// ReconstructUser rebuilds a User from persistence data (no validation).
func ReconstructUser(id uuid.UUID, name, email, passwordHash, role string, createdAt, updatedAt time.Time) *User {
	return &User{
		id:           id,
		name:         name,
		email:        email,
		passwordHash: passwordHash,
		role:         role,
		createdAt:    createdAt,
		updatedAt:    updatedAt,
	}
}

func (u *User) ID() uuid.UUID        { return u.id }
func (u *User) Name() string         { return u.name }
func (u *User) Email() string        { return u.email }
func (u *User) PasswordHash() string { return u.passwordHash }
func (u *User) Role() string         { return u.role }
func (u *User) CreatedAt() time.Time { return u.createdAt }
func (u *User) UpdatedAt() time.Time { return u.updatedAt }

// IsAdmin reports whether the user has the admin role.
func (u *User) IsAdmin() bool { return u.role == auth.RoleAdmin }

// ChangePassword replaces the stored hash.
func (u *User) ChangePassword(passwordHash string) error {
	if passwordHash == "" {
		return domain.NewFieldValidationError(domain.FieldError{Field: "new_password", Message: "is required"})
	}
	u.passwordHash = passwordHash
	u.updatedAt = time.Now().UTC()
	return nil
}

// UserRepository defines the persistence contract for users.
type UserRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	Save(ctx context.Context, u *User) error
	UpdatePassword(ctx context.Context, u *User) error
}
