package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"unicode"

	"openthink/internal/apperr"
	"openthink/internal/models"
	"openthink/internal/store"
	"openthink/internal/utils"

	"go.uber.org/zap"
)

// MinPasswordLength 密码最短长度
const MinPasswordLength = 7

var emailPattern = regexp.MustCompile(`^[^@]+@[^@]+\.[^@]+`)

type AuthService struct {
	store *store.Store
	log   *zap.Logger
}

func NewAuthService(s *store.Store, log *zap.Logger) *AuthService {
	return &AuthService{store: s, log: log}
}

// RegisterInput carries the registration form.
type RegisterInput struct {
	Username        string
	Email           string
	Password        string
	ConfirmPassword string
}

// Register validates the form and creates the account. Checks run in a fixed
// order and the first failing one is reported.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	if in.Username == "" {
		return nil, apperr.Validation(apperr.CodeMissingData, "you need to choose a username")
	}
	for _, r := range in.Username {
		if unicode.IsSpace(r) {
			return nil, apperr.Validation(apperr.CodeInvalidInput, "username can't contain spaces")
		}
	}
	if !emailPattern.MatchString(in.Email) {
		return nil, apperr.Validation(apperr.CodeInvalidInput, "You must use a valid email address")
	}
	if in.Password != in.ConfirmPassword {
		return nil, apperr.Validation(apperr.CodeInvalidInput, "Your passwords don't match")
	}
	if len([]rune(in.Password)) < MinPasswordLength {
		return nil, apperr.Validation(apperr.CodeInvalidInput,
			fmt.Sprintf("Your password must be at least %d characters", MinPasswordLength))
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user, err := s.store.CreateUser(ctx, in.Username, in.Email, &hash)
	if err != nil {
		if !apperr.IsFailure(err) {
			s.log.Error("create user failed", zap.String("username", in.Username), zap.Error(err))
		}
		return nil, err
	}
	s.log.Info("user registered", zap.Uint("user_id", user.ID), zap.String("username", user.Username))
	return user, nil
}

// Login returns the user whose password matches, or nil when the username is
// unknown or the password is wrong. Both cases cost one bcrypt comparison.
func (s *AuthService) Login(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.store.FindUserByUsername(ctx, username)
	if err != nil && !apperr.IsKind(err, apperr.KindNotFound) {
		return nil, err
	}

	var hash *string
	if user != nil {
		hash = user.Password
	}
	if !utils.CheckPasswordHashOrDummy(password, hash) {
		return nil, nil
	}
	return user, nil
}

// CurrentUser loads the session user; a vanished account reads as anonymous.
func (s *AuthService) CurrentUser(ctx context.Context, id uint) (*models.User, error) {
	if id == 0 {
		return nil, nil
	}
	user, err := s.store.Users.FindByID(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, nil
	}
	return user, err
}
