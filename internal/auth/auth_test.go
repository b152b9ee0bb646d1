package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"divvy/internal/core"
)

type fakeUserStorage struct {
	byEmail map[string]*core.User
}

func newFakeUserStorage() *fakeUserStorage {
	return &fakeUserStorage{byEmail: make(map[string]*core.User)}
}

func (s *fakeUserStorage) CreateUser(_ context.Context, user *core.User) error {
	if _, ok := s.byEmail[user.Email]; ok {
		return errors.New("duplicate email")
	}
	s.byEmail[user.Email] = user
	return nil
}

func (s *fakeUserStorage) GetUserByEmail(_ context.Context, email string) (*core.User, error) {
	u, ok := s.byEmail[email]
	if !ok {
		return nil, errors.New("not found")
	}
	return u, nil
}

func (s *fakeUserStorage) GetUserByID(_ context.Context, id string) (*core.User, error) {
	for _, u := range s.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, errors.New("not found")
}

func TestRegisterAndAuthenticate(t *testing.T) {
	a := NewPasswordAuthenticator(newFakeUserStorage())
	ctx := context.Background()

	user, err := a.Register(ctx, "Alice@Example.com", "Alice", "correct horse battery")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.Email != "alice@example.com" {
		t.Errorf("email not normalized: %q", user.Email)
	}
	if user.Plan != "free" {
		t.Errorf("plan = %q, want free", user.Plan)
	}
	if user.ID == "" {
		t.Error("missing user id")
	}
	if user.PasswordHash == "correct horse battery" {
		t.Error("password stored in the clear")
	}

	got, err := a.Authenticate(ctx, "alice@example.com", "correct horse battery")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("authenticated wrong user: %s", got.ID)
	}

	if _, err := a.Authenticate(ctx, "alice@example.com", "wrong password!"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password error = %v, want ErrInvalidCredentials", err)
	}
	if _, err := a.Authenticate(ctx, "nobody@example.com", "correct horse battery"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown email error = %v, want ErrInvalidCredentials", err)
	}
}

func TestRegisterRejectsWeakPassword(t *testing.T) {
	a := NewPasswordAuthenticator(newFakeUserStorage())

	if _, err := a.Register(context.Background(), "bob@example.com", "Bob", "short"); !errors.Is(err, ErrWeakPassword) {
		t.Errorf("error = %v, want ErrWeakPassword", err)
	}
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	a := NewPasswordAuthenticator(newFakeUserStorage())
	ctx := context.Background()

	if _, err := a.Register(ctx, "bob@example.com", "Bob", "long enough password"); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	if _, err := a.Register(ctx, "BOB@example.com", "Other Bob", "another password"); !errors.Is(err, ErrEmailExists) {
		t.Errorf("error = %v, want ErrEmailExists", err)
	}
}

func TestRegisterRejectsBadEmail(t *testing.T) {
	a := NewPasswordAuthenticator(newFakeUserStorage())

	if _, err := a.Register(context.Background(), "not-an-email", "X", "long enough password"); err == nil {
		t.Error("expected error for malformed email")
	}
}

func TestJWTRoundTrip(t *testing.T) {
	m := NewJWTManager("0123456789abcdef0123456789abcdef", time.Hour)
	user := &core.User{ID: "u1", Email: "alice@example.com"}

	token, err := m.Generate(user)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	claims, err := m.Validate(token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if claims.UserID != "u1" || claims.Email != "alice@example.com" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestJWTRejectsTamperedToken(t *testing.T) {
	m := NewJWTManager("0123456789abcdef0123456789abcdef", time.Hour)
	other := NewJWTManager("ffffffffffffffffffffffffffffffff", time.Hour)

	token, err := other.Generate(&core.User{ID: "u1", Email: "a@b.c"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if _, err := m.Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("error = %v, want ErrInvalidToken", err)
	}
	if _, err := m.Validate("garbage.token.here"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("error = %v, want ErrInvalidToken", err)
	}
}

func TestJWTRejectsExpiredToken(t *testing.T) {
	m := NewJWTManager("0123456789abcdef0123456789abcdef", -time.Minute)

	token, err := m.Generate(&core.User{ID: "u1", Email: "a@b.c"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if _, err := m.Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("error = %v, want ErrInvalidToken", err)
	}
}
