package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"focusd/services/api/internal/models"
)

var (
	ErrInvalid            = errors.New("invalid credentials payload")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

const (
	minPasswordLength = 6
	// bcrypt rejects longer input.
	maxPasswordLength = 72
)

// User is the public view of an account.
type User struct {
	ID    uint   `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Result is returned by Signup and Login.
type Result struct {
	AccessToken string `json:"accessToken"`
	User        User   `json:"user"`
}

// SignupInput is the payload for creating an account.
type SignupInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// LoginInput is the payload for exchanging credentials for a token.
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Service registers and authenticates users.
type Service struct {
	orm    *gorm.DB
	tokens *Tokens
	cost   int
	logger zerolog.Logger
}

// NewService wires the auth service.
func NewService(orm *gorm.DB, tokens *Tokens, logger zerolog.Logger) (*Service, error) {
	if orm == nil {
		return nil, errors.New("orm is required")
	}
	if tokens == nil {
		return nil, errors.New("tokens are required")
	}
	return &Service{orm: orm, tokens: tokens, cost: bcrypt.DefaultCost, logger: logger}, nil
}

// Signup creates an account and returns a token for it.
func (s *Service) Signup(ctx context.Context, in SignupInput) (Result, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return Result{}, err
	}
	if len(in.Password) < minPasswordLength {
		return Result{}, fmt.Errorf("%w: password must be at least %d characters", ErrInvalid, minPasswordLength)
	}
	if len(in.Password) > maxPasswordLength {
		return Result{}, fmt.Errorf("%w: password must be at most %d bytes", ErrInvalid, maxPasswordLength)
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return Result{}, fmt.Errorf("%w: name is required", ErrInvalid)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return Result{}, fmt.Errorf("hash password: %w", err)
	}

	user := models.User{Email: email, Name: name, PasswordHash: string(hash)}
	err = s.orm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrEmailTaken
		}
		return tx.Create(&user).Error
	})
	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return Result{}, ErrEmailTaken
	case err != nil:
		return Result{}, err
	}

	s.logger.Info().Uint("user_id", user.ID).Msg("user signed up")
	return s.result(user)
}

// Login verifies credentials and returns a fresh token.
func (s *Service) Login(ctx context.Context, in LoginInput) (Result, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return Result{}, err
	}
	if in.Password == "" {
		return Result{}, fmt.Errorf("%w: password is required", ErrInvalid)
	}

	var user models.User
	if err := s.orm.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Result{}, ErrInvalidCredentials
		}
		return Result{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		return Result{}, ErrInvalidCredentials
	}
	return s.result(user)
}

// Authenticate resolves a bearer token to an existing user id.
func (s *Service) Authenticate(ctx context.Context, token string) (uint, error) {
	userID, err := s.tokens.Verify(token)
	if err != nil {
		return 0, err
	}
	var count int64
	if err := s.orm.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, fmt.Errorf("%w: unknown user", ErrInvalidToken)
	}
	return userID, nil
}

// User returns the public view of the account.
func (s *Service) User(ctx context.Context, userID uint) (User, error) {
	var user models.User
	if err := s.orm.WithContext(ctx).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return User{}, ErrInvalidToken
		}
		return User{}, err
	}
	return User{ID: user.ID, Email: user.Email, Name: user.Name}, nil
}

func (s *Service) result(user models.User) (Result, error) {
	token, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return Result{}, fmt.Errorf("issue token: %w", err)
	}
	return Result{AccessToken: token, User: User{ID: user.ID, Email: user.Email}}, nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", fmt.Errorf("%w: email is required", ErrInvalid)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: email is not valid", ErrInvalid)
	}
	return email, nil
}
