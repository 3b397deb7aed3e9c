package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"pdfqa/internal/models"
	"pdfqa/internal/repository"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const (
	defaultPerPage = 3
	maxPerPage     = 100
)

// PasswordResetMailer delivers password reset links.
type PasswordResetMailer interface {
	SendPasswordReset(ctx context.Context, email, link string) error
}

type RegisterInput struct {
	Username     string `validate:"required,max=80"`
	Email        string `validate:"required,email,max=120"`
	Password     string `validate:"required"`
	SudoPassword string
}

type LoginResult struct {
	AccessToken  string
	RefreshToken string
	User         models.UserView
}

type UserPage struct {
	Users   []models.UserView `json:"users"`
	Page    int               `json:"page"`
	PerPage int               `json:"per_page"`
	Total   int64             `json:"total"`
	MaxPage int64             `json:"max_page"`
}

type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*models.User, error)
	Login(ctx context.Context, username, password string) (*LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (string, error)
	VerifyToken(token string) (*models.Claims, error)
	UpdatePassword(ctx context.Context, username, newPassword string) error
	DeleteUser(ctx context.Context, username string) error
	AdminDeleteUser(ctx context.Context, admin, username string) error
	ListUsers(ctx context.Context, page, perPage int) (*UserPage, error)
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	EnsureAdmin(ctx context.Context, username, email, password string) error
}

// AuthOptions holds the auth settings that are not owned by the token manager.
type AuthOptions struct {
	// RegistrationSecret, when set, must be presented as the sudo password on
	// registration.
	RegistrationSecret string
	// FrontendURL is the prefix of the password reset link sent by mail.
	FrontendURL string
}

type authService struct {
	repo     repository.UserRepository
	tokens   *TokenManager
	mailer   PasswordResetMailer
	validate *validator.Validate
	opts     AuthOptions
	logger   *zap.Logger
}

func NewAuthService(repo repository.UserRepository, tokens *TokenManager, mailer PasswordResetMailer, opts AuthOptions, logger *zap.Logger) AuthService {
	return &authService{
		repo:     repo,
		tokens:   tokens,
		mailer:   mailer,
		validate: validator.New(),
		opts:     opts,
		logger:   logger,
	}
}

func (s *authService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	if s.opts.RegistrationSecret != "" &&
		subtle.ConstantTimeCompare([]byte(in.SudoPassword), []byte(s.opts.RegistrationSecret)) != 1 {
		return nil, ErrSudoPasswordIncorrect
	}

	if _, err := s.repo.GetByUsername(ctx, in.Username); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}

	if _, err := s.repo.GetByEmail(ctx, in.Email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}

	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}

	return s.createUser(ctx, in.Username, in.Email, in.Password, models.RoleUser)
}

func (s *authService) createUser(ctx context.Context, username, email, password, role string) (*models.User, error) {
	passwordHash, err := hashPassword(password)
	if err != nil {
		s.logger.Error("Failed to hash password", zap.Error(err))
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
	}

	// the pre-checks above can race with a concurrent registration; the
	// store's unique constraints are the final word
	err = s.repo.Create(ctx, user)
	switch {
	case errors.Is(err, repository.ErrDuplicateUsername):
		return nil, ErrUsernameTaken
	case errors.Is(err, repository.ErrDuplicateEmail):
		return nil, ErrEmailTaken
	case err != nil:
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("User registered", zap.String("username", user.Username), zap.Int64("id", user.ID))
	return user, nil
}

func (s *authService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	s.logger.Info("Login attempt", zap.String("username", username))

	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrLoginFailed
		}
		return nil, fmt.Errorf("failed to retrieve user: %w", err)
	}

	if !verifyPassword(user.PasswordHash, password) {
		return nil, ErrLoginFailed
	}

	access, err := s.tokens.Issue(user, models.TokenTypeAccess)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}
	refresh, err := s.tokens.Issue(user, models.TokenTypeRefresh)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	s.logger.Info("User logged in successfully.", zap.String("username", user.Username))

	return &LoginResult{AccessToken: access, RefreshToken: refresh, User: user.View()}, nil
}

func (s *authService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.tokens.Verify(refreshToken, models.TokenTypeRefresh)
	if err != nil {
		return "", err
	}

	// the role may have changed since the refresh token was issued
	user, err := s.lookup(ctx, claims.Subject)
	if err != nil {
		return "", err
	}

	return s.tokens.Issue(user, models.TokenTypeAccess)
}

func (s *authService) VerifyToken(token string) (*models.Claims, error) {
	return s.tokens.Verify(token, models.TokenTypeAccess)
}

func (s *authService) UpdatePassword(ctx context.Context, username, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	user, err := s.lookup(ctx, username)
	if err != nil {
		return err
	}

	return s.setPassword(ctx, user, newPassword)
}

func (s *authService) DeleteUser(ctx context.Context, username string) error {
	user, err := s.lookup(ctx, username)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, user.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to delete user: %w", err)
	}

	s.logger.Info("User deleted", zap.String("username", username))
	return nil
}

// AdminDeleteUser removes any account on behalf of admin. Role checks are
// done by the caller.
func (s *authService) AdminDeleteUser(ctx context.Context, admin, username string) error {
	if err := s.DeleteUser(ctx, username); err != nil {
		return err
	}
	s.logger.Info("User deleted by admin", zap.String("admin", admin), zap.String("username", username))
	return nil
}

func (s *authService) ListUsers(ctx context.Context, page, perPage int) (*UserPage, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}

	total, err := s.repo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}

	maxPage := total / int64(perPage)
	if total%int64(perPage) != 0 {
		maxPage++
	}

	result := &UserPage{Users: []models.UserView{}, Page: page, PerPage: perPage, Total: total, MaxPage: maxPage}
	// past the last page the offset could overflow, and there is nothing to read
	if int64(page) > maxPage {
		return result, nil
	}

	users, err := s.repo.List(ctx, (page-1)*perPage, perPage)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	for _, u := range users {
		result.Users = append(result.Users, u.View())
	}

	return result, nil
}

func (s *authService) RequestPasswordReset(ctx context.Context, email string) error {
	if email == "" {
		return ErrUserNotFound
	}

	if _, err := s.repo.GetByEmail(ctx, email); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to retrieve user: %w", err)
	}

	token, err := s.tokens.IssueReset(email)
	if err != nil {
		return fmt.Errorf("failed to generate reset token: %w", err)
	}

	link := s.opts.FrontendURL + "password_reset/" + token
	if err := s.mailer.SendPasswordReset(ctx, email, link); err != nil {
		s.logger.Error("Failed to send password reset email", zap.String("email", email), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrMailRelay, err)
	}

	return nil
}

func (s *authService) ResetPassword(ctx context.Context, token, newPassword string) error {
	email, err := s.tokens.VerifyReset(token)
	if err != nil {
		return err
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to retrieve user: %w", err)
	}

	if err := validatePassword(newPassword); err != nil {
		return err
	}

	return s.setPassword(ctx, user, newPassword)
}

func (s *authService) EnsureAdmin(ctx context.Context, username, email, password string) error {
	if username == "" {
		return nil
	}

	existing, err := s.repo.GetByUsername(ctx, username)
	if err == nil {
		if existing.Role != models.RoleAdmin {
			s.logger.Warn("Configured admin username belongs to a non-admin account", zap.String("username", username))
		}
		return nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("failed to check admin account: %w", err)
	}

	if err := validatePassword(password); err != nil {
		return fmt.Errorf("admin password: %w", err)
	}
	if _, err := s.createUser(ctx, username, email, password, models.RoleAdmin); err != nil {
		return err
	}

	s.logger.Info("Admin account provisioned", zap.String("username", username))
	return nil
}

func (s *authService) lookup(ctx context.Context, username string) (*models.User, error) {
	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to retrieve user: %w", err)
	}
	return user, nil
}

func (s *authService) setPassword(ctx context.Context, user *models.User, password string) error {
	passwordHash, err := hashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.repo.UpdatePassword(ctx, user.ID, passwordHash); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to update password: %w", err)
	}

	s.logger.Info("Password updated", zap.String("username", user.Username))
	return nil
}
