package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"pharmcatalog/internal/auth"
	apperrors "pharmcatalog/internal/errors"
	"pharmcatalog/internal/model"
	"pharmcatalog/internal/repository"
)

// UserSummary is the public view of a user; the password hash never leaves the service.
type UserSummary struct {
	ID    uint    `json:"id"`
	Email string  `json:"email"`
	Role  string  `json:"role"`
	Name  *string `json:"name"`
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	AccessToken string
	User        UserSummary
}

// AuthService handles authentication operations.
type AuthService interface {
	Register(ctx context.Context, email, password, name string) (*UserSummary, error)
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	CurrentUser(ctx context.Context, id uint) (*UserSummary, error)
}

type authService struct {
	userRepo   repository.UserRepository
	hasher     *auth.PasswordHasher
	jwtService *auth.JWTService
	// compared against when the email is unknown so both login failures cost a bcrypt round
	dummyHash string
}

// NewAuthService creates a new authentication service.
func NewAuthService(userRepo repository.UserRepository, hasher *auth.PasswordHasher, jwtService *auth.JWTService) AuthService {
	dummy, _ := hasher.Hash("dummy-password-for-timing")
	return &authService{
		userRepo:   userRepo,
		hasher:     hasher,
		jwtService: jwtService,
		dummyHash:  dummy,
	}
}

// NormalizeEmail trims surrounding space and lower-cases the address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a new USER account with a hashed password.
func (s *authService) Register(ctx context.Context, email, password, name string) (*UserSummary, error) {
	email = NormalizeEmail(email)

	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err == nil && existing != nil {
		return nil, apperrors.ErrEmailTaken
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("check user existence: %w", err)
	}

	hashed, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Email:        email,
		PasswordHash: hashed,
		Role:         model.RoleUser,
	}
	if name = strings.TrimSpace(name); name != "" {
		user.Name = &name
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		// lost a race with a concurrent registration
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperrors.ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	summary := summarize(user)
	return &summary, nil
}

// Login authenticates a user and issues an access token.
func (s *authService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.userRepo.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.hasher.Verify(password, s.dummyHash)
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, apperrors.ErrInvalidCredentials
	}

	accessToken, err := s.jwtService.GenerateAccessToken(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}

	return &LoginResult{
		AccessToken: accessToken,
		User:        summarize(user),
	}, nil
}

// CurrentUser returns the summary of the user behind a verified token.
func (s *authService) CurrentUser(ctx context.Context, id uint) (*UserSummary, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	summary := summarize(user)
	return &summary, nil
}

func summarize(user *model.User) UserSummary {
	return UserSummary{
		ID:    user.ID,
		Email: user.Email,
		Role:  user.Role,
		Name:  user.Name,
	}
}
