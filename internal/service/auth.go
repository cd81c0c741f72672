// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/chatrelay/chatrelay/internal/auth"
	"github.com/chatrelay/chatrelay/internal/model"
	"github.com/chatrelay/chatrelay/internal/repository"
)

// Service errors.
var (
	ErrInvalidEmail       = errors.New("invalid email format")
	ErrPasswordTooShort   = errors.New("password must be at least 6 characters")
	ErrEmailExists        = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserNotFound       = errors.New("user not found")
)

// Email shape check only; deliverability is the mail server's problem.
var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const minPasswordLength = 6

// UserStore is the credential store the auth service runs against.
// Implemented by *repository.Repository.
type UserStore interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}

// TokenRevoker records tokens that must stop verifying before expiry.
type TokenRevoker interface {
	RevokeToken(ctx context.Context, tokenID string, until time.Time) error
}

// AuthService handles signup, login and identity resolution.
type AuthService struct {
	store   UserStore
	tokens  *auth.TokenService
	revoker TokenRevoker
	logger  *slog.Logger
}

// NewAuthService creates an AuthService. revoker may be nil, in which
// case logout is accepted but tokens stay valid until they expire.
func NewAuthService(store UserStore, tokens *auth.TokenService, revoker TokenRevoker, logger *slog.Logger) *AuthService {
	return &AuthService{
		store:   store,
		tokens:  tokens,
		revoker: revoker,
		logger:  logger,
	}
}

// AuthResult bundles a freshly issued token with the public account view.
type AuthResult struct {
	Token string
	User  model.PublicUser
}

// Signup validates input, stores a new account with a hashed password
// and returns a session token. The plaintext password never reaches
// storage or logs.
func (s *AuthService) Signup(ctx context.Context, email, password, name string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	if !emailRegex.MatchString(email) {
		return nil, ErrInvalidEmail
	}
	if len(password) < minPasswordLength {
		return nil, ErrPasswordTooShort
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = email[:strings.Index(email, "@")]
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{
		ID:           ulid.Make().String(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	s.logger.Info("user_registered", "user_id", user.ID)

	return &AuthResult{Token: token, User: user.Public()}, nil
}

// Login verifies credentials and issues a fresh token. Unknown email
// and wrong password return the same error, and both paths burn a hash
// compare so neither is cheaper to probe.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.store.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			auth.VerifyDummy(password)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if !auth.VerifyPassword(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	s.logger.Info("user_logged_in", "user_id", user.ID)

	return &AuthResult{Token: token, User: user.Public()}, nil
}

// WhoAmI resolves a verified identity back to the stored account, so a
// deleted account's token stops resolving even before expiry.
func (s *AuthService) WhoAmI(ctx context.Context, userID string) (model.PublicUser, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return model.PublicUser{}, ErrUserNotFound
		}
		return model.PublicUser{}, fmt.Errorf("lookup user: %w", err)
	}
	return user.Public(), nil
}

// Logout revokes the presented token until its natural expiry. Without
// a revoker configured this is a no-op: the token stays valid, which is
// the documented trade-off of stateless sessions.
func (s *AuthService) Logout(ctx context.Context, identity *auth.Identity) error {
	if s.revoker == nil {
		s.logger.Debug("logout without revocation store", "user_id", identity.UserID)
		return nil
	}
	if err := s.revoker.RevokeToken(ctx, identity.TokenID, identity.Expires); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	s.logger.Info("token_revoked", "user_id", identity.UserID)
	return nil
}
