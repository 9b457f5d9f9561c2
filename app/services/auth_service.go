package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/farmshop/storefront/app/models"
	"github.com/farmshop/storefront/app/repositories"
	"github.com/farmshop/storefront/pkg/auth"
	"github.com/farmshop/storefront/pkg/recaptcha"
)

// AuthService registers and authenticates shoppers.
type AuthService struct {
	users   *repositories.UserRepository
	admins  []uint
	captcha *recaptcha.Verifier
}

func NewAuthService(users *repositories.UserRepository, admins []uint, captcha *recaptcha.Verifier) *AuthService {
	if captcha == nil {
		captcha = recaptcha.New("")
	}
	return &AuthService{users: users, admins: admins, captcha: captcha}
}

// CaptchaEnabled reports whether registration asks for a reCAPTCHA.
func (s *AuthService) CaptchaEnabled() bool { return s.captcha.Enabled() }

// Register creates a user. The captcha response is ignored when reCAPTCHA is
// not configured.
func (s *AuthService) Register(ctx context.Context, email, password, captcha, remoteIP string) (*models.User, error) {
	email = normalizeEmail(email)
	if err := s.captcha.Verify(ctx, captcha, remoteIP); err != nil {
		if errors.Is(err, recaptcha.ErrFailed) {
			return nil, ErrCaptcha
		}
		return nil, err
	}

	_, err := s.users.FindByEmail(ctx, email)
	if err == nil {
		return nil, ErrAlreadyRegistered
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return nil, err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := &models.User{Email: email, Password: hash}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, ErrAlreadyRegistered
		}
		return nil, fmt.Errorf("register: %w", err)
	}
	return user, nil
}

// Login checks credentials and returns the user.
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	if !auth.CheckPassword(user.Password, password) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// Principal loads the identity for a session's user id. A missing user is
// reported as repositories.ErrNotFound.
func (s *AuthService) Principal(ctx context.Context, id uint) (*auth.Principal, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &auth.Principal{ID: user.ID, Email: user.Email, Admin: auth.IsAdmin(user.ID, s.admins)}, nil
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(email)
}
