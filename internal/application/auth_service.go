package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Kilat-Parking/service-parking/internal/domain/store"
	"github.com/Kilat-Parking/service-parking/internal/domain/user"
	"github.com/Kilat-Parking/service-parking/pkg/auth"
	"github.com/Kilat-Parking/service-parking/pkg/domain"
)

// RegisterRequest holds the data needed to create an account.
type RegisterRequest struct {
	Name     string `json:"name" binding:"required,max=100"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8,max=72"`
}

// LoginRequest holds login credentials.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest exchanges a refresh token for a new pair.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// ChangePasswordRequest replaces the caller's password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8,max=72"`
}

// UserDTO is the response representation of a user.
type UserDTO struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// AuthResponse is returned on register and login.
type AuthResponse struct {
	User   UserDTO         `json:"user"`
	Tokens *auth.TokenPair `json:"tokens"`
}

// AuthService handles accounts and token issuance.
type AuthService struct {
	users  user.UserRepository
	jwt    *auth.JWTManager
	logger *zap.Logger
}

// NewAuthService creates a new AuthService.
func NewAuthService(repos store.Repositories, jwtManager *auth.JWTManager, logger *zap.Logger) *AuthService {
	return &AuthService{users: repos.Users, jwt: jwtManager, logger: logger}
}

// Register creates a user account and signs it in.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	u, err := s.createUser(ctx, req.Name, req.Email, req.Password, auth.RoleUser)
	if err != nil {
		return nil, err
	}
	return s.issue(u)
}

// Login verifies credentials and issues a token pair.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	u, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if domain.IsKind(err, domain.KindNotFound) {
			return nil, domain.NewUnauthorizedError("invalid email or password")
		}
		return nil, err
	}
	if !auth.CheckPassword(u.PasswordHash(), req.Password) {
		return nil, domain.NewUnauthorizedError("invalid email or password")
	}
	return s.issue(u)
}

// Refresh issues a new token pair from a valid refresh token.
func (s *AuthService) Refresh(ctx context.Context, req RefreshRequest) (*AuthResponse, error) {
	claims, err := s.jwt.ValidateToken(req.RefreshToken)
	if err != nil || claims.TokenType != auth.TokenTypeRefresh {
		return nil, domain.NewUnauthorizedError("invalid refresh token")
	}
	u, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if domain.IsKind(err, domain.KindNotFound) {
			return nil, domain.NewUnauthorizedError("invalid refresh token")
		}
		return nil, err
	}
	return s.issue(u)
}

// Me returns the profile of the authenticated user.
func (s *AuthService) Me(ctx context.Context, userID uuid.UUID) (*UserDTO, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	result := toUserDTO(u)
	return &result, nil
}

// ChangePassword verifies the current password and stores a hash of the new one.
// Tokens already issued stay valid until they expire.
func (s *AuthService) ChangePassword(ctx context.Context, userID uuid.UUID, req ChangePasswordRequest) error {
	if len(req.NewPassword) < 8 {
		return domain.NewFieldValidationError(domain.FieldError{Field: "new_password", Message: "must be at least 8 characters"})
	}
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if !auth.CheckPassword(u.PasswordHash(), req.CurrentPassword) {
		return domain.NewUnauthorizedError("current password is incorrect")
	}
	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	if err := u.ChangePassword(hash); err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, u); err != nil {
		return err
	}
	s.logger.Info("password changed", zap.String("user_id", u.ID().String()))
	return nil
}

// EnsureAdmin creates an admin account with the given credentials unless the email is taken.
func (s *AuthService) EnsureAdmin(ctx context.Context, name, email, password string) error {
	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil
	} else if !domain.IsKind(err, domain.KindNotFound) {
		return err
	}

	u, err := s.createUser(ctx, name, email, password, auth.RoleAdmin)
	if err != nil {
		return err
	}
	s.logger.Info("admin account created", zap.String("user_id", u.ID().String()), zap.String("email", u.Email()))
	return nil
}

func (s *AuthService) createUser(ctx context.Context, name, email, password, role string) (*user.User, error) {
	if len(password) < 8 {
		return nil, domain.NewFieldValidationError(domain.FieldError{Field: "password", Message: "must be at least 8 characters"})
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	u, err := user.NewUser(name, email, hash, role)
	if err != nil {
		return nil, err
	}
	if err := s.users.Save(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *AuthService) issue(u *user.User) (*AuthResponse, error) {
	tokens, err := s.jwt.GenerateTokenPair(u.ID(), u.Role())
	if err != nil {
		return nil, err
	}
	return &AuthResponse{User: toUserDTO(u), Tokens: tokens}, nil
}

func toUserDTO(u *user.User) UserDTO {
	return UserDTO{
		ID:        u.ID(),
		Name:      u.Name(),
		Email:     u.Email(),
		Role:      u.Role(),
		CreatedAt: u.CreatedAt(),
	}
}
