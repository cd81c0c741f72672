package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chatrelay/chatrelay/internal/auth"
	"github.com/chatrelay/chatrelay/internal/model"
	"github.com/chatrelay/chatrelay/internal/repository"
)

// fakeStore is an in-memory UserStore with the same case-insensitive
// uniqueness semantics as the real repository.
type fakeStore struct {
	mu          sync.Mutex
	users       map[string]*model.User
	createCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: make(map[string]*model.User)}
}

func (s *fakeStore) CreateUser(_ context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createCalls++
	for _, u := range s.users {
		if strings.EqualFold(u.Email, user.Email) {
			return repository.ErrEmailExists
		}
	}
	copied := *user
	s.users[user.ID] = &copied
	return nil
}

func (s *fakeStore) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			copied := *u
			return &copied, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (s *fakeStore) GetUserByID(_ context.Context, id string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

type fakeRevoker struct {
	mu      sync.Mutex
	revoked []string
}

func (r *fakeRevoker) RevokeToken(_ context.Context, tokenID string, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revoked = append(r.revoked, tokenID)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestAuthService(store UserStore, revoker TokenRevoker) (*AuthService, *auth.TokenService) {
	tokens := auth.NewTokenService("test-secret", time.Hour)
	return NewAuthService(store, tokens, revoker, discardLogger()), tokens
}

func TestAuthService_Signup(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc, tokens := newTestAuthService(store, nil)

	result, err := svc.Signup(context.Background(), "A@X.com", "secret123", "Alice")
	if err != nil {
		t.Fatalf("Signup failed: %v", err)
	}

	if result.User.Email != "a@x.com" {
		t.Errorf("email should be lowercased, got %s", result.User.Email)
	}
	if result.User.Name != "Alice" {
		t.Errorf("unexpected name: %s", result.User.Name)
	}
	if result.User.ID == "" {
		t.Error("expected a generated ID")
	}

	identity, err := tokens.Verify(result.Token)
	if err != nil {
		t.Fatalf("issued token should verify: %v", err)
	}
	if identity.UserID != result.User.ID {
		t.Errorf("token subject %s does not match user %s", identity.UserID, result.User.ID)
	}

	// The plaintext password must not be stored.
	stored, err := store.GetUserByID(context.Background(), result.User.ID)
	if err != nil {
		t.Fatalf("stored user not found: %v", err)
	}
	if stored.PasswordHash == "secret123" || stored.PasswordHash == "" {
		t.Error("password must be stored as a hash")
	}
}

func TestAuthService_Signup_DefaultName(t *testing.T) {
	t.Parallel()

	svc, _ := newTestAuthService(newFakeStore(), nil)

	result, err := svc.Signup(context.Background(), "bob@example.com", "secret123", "")
	if err != nil {
		t.Fatalf("Signup failed: %v", err)
	}
	if result.User.Name != "bob" {
		t.Errorf("name should default to the email local part, got %s", result.User.Name)
	}
}

func TestAuthService_Signup_InvalidInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{"missing at sign", "not-an-email", "secret123", ErrInvalidEmail},
		{"missing domain dot", "a@nodot", "secret123", ErrInvalidEmail},
		{"whitespace in email", "a b@x.com", "secret123", ErrInvalidEmail},
		{"empty email", "", "secret123", ErrInvalidEmail},
		{"short password", "a@x.com", "12345", ErrPasswordTooShort},
		{"empty password", "a@x.com", "", ErrPasswordTooShort},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store := newFakeStore()
			svc, _ := newTestAuthService(store, nil)

			_, err := svc.Signup(context.Background(), tt.email, tt.password, "")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}

			// Validation failures must never reach storage.
			if store.createCalls != 0 {
				t.Errorf("expected no storage writes, got %d", store.createCalls)
			}
		})
	}
}

func TestAuthService_Signup_DuplicateEmail(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc, _ := newTestAuthService(store, nil)

	if _, err := svc.Signup(context.Background(), "A@X.com", "secret123", ""); err != nil {
		t.Fatalf("first signup failed: %v", err)
	}

	// Same address, different case.
	_, err := svc.Signup(context.Background(), "a@x.COM", "other-secret", "")
	if !errors.Is(err, ErrEmailExists) {
		t.Fatalf("expected ErrEmailExists, got %v", err)
	}

	if len(store.users) != 1 {
		t.Errorf("expected exactly one account, got %d", len(store.users))
	}
}

func TestAuthService_Signup_ConcurrentDuplicates(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc, _ := newTestAuthService(store, nil)

	const attempts = 8
	errs := make(chan error, attempts)

	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Signup(context.Background(), "race@x.com", "secret123", "")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	successes := 0
	for err := range errs {
		if err == nil {
			successes++
		} else if !errors.Is(err, ErrEmailExists) {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if successes != 1 {
		t.Fatalf("expected exactly one successful signup, got %d", successes)
	}
}

func TestAuthService_Login(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc, tokens := newTestAuthService(store, nil)

	if _, err := svc.Signup(context.Background(), "A@X.com", "right-password", ""); err != nil {
		t.Fatalf("signup failed: %v", err)
	}

	// Case-insensitive email match.
	result, err := svc.Login(context.Background(), "a@x.com", "right-password")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if _, err := tokens.Verify(result.Token); err != nil {
		t.Fatalf("login token should verify: %v", err)
	}

	// Wrong password and unknown email fail with the same error.
	_, wrongPass := svc.Login(context.Background(), "a@x.com", "wrong-password")
	_, unknown := svc.Login(context.Background(), "nobody@x.com", "right-password")

	if !errors.Is(wrongPass, ErrInvalidCredentials) {
		t.Errorf("wrong password: expected ErrInvalidCredentials, got %v", wrongPass)
	}
	if !errors.Is(unknown, ErrInvalidCredentials) {
		t.Errorf("unknown email: expected ErrInvalidCredentials, got %v", unknown)
	}
}

func TestAuthService_WhoAmI(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc, _ := newTestAuthService(store, nil)

	result, err := svc.Signup(context.Background(), "a@x.com", "secret123", "Alice")
	if err != nil {
		t.Fatalf("signup failed: %v", err)
	}

	user, err := svc.WhoAmI(context.Background(), result.User.ID)
	if err != nil {
		t.Fatalf("WhoAmI failed: %v", err)
	}
	if user.Email != "a@x.com" {
		t.Errorf("unexpected email: %s", user.Email)
	}

	// A token for a deleted account must stop resolving.
	if _, err := svc.WhoAmI(context.Background(), "gone"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestAuthService_Logout(t *testing.T) {
	t.Parallel()

	revoker := &fakeRevoker{}
	svc, _ := newTestAuthService(newFakeStore(), revoker)

	identity := &auth.Identity{
		UserID:  "u1",
		TokenID: "jti-1",
		Expires: time.Now().Add(time.Hour),
	}

	if err := svc.Logout(context.Background(), identity); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if len(revoker.revoked) != 1 || revoker.revoked[0] != "jti-1" {
		t.Errorf("expected jti-1 to be revoked, got %v", revoker.revoked)
	}
}

func TestAuthService_Logout_NoRevoker(t *testing.T) {
	t.Parallel()

	svc, _ := newTestAuthService(newFakeStore(), nil)

	identity := &auth.Identity{UserID: "u1", TokenID: "jti-1", Expires: time.Now().Add(time.Hour)}
	if err := svc.Logout(context.Background(), identity); err != nil {
		t.Fatalf("Logout without revoker should be a no-op, got %v", err)
	}
}
