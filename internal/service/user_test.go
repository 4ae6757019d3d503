package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/pagofacil-pos/api/internal/auth"
	"github.com/pagofacil-pos/api/internal/enum"
	"github.com/pagofacil-pos/api/internal/store"
	"github.com/pagofacil-pos/api/internal/store/memory"
)

const testSecret = "test-secret"

func newUserService() (*UserService, *memory.Store) {
	st := memory.New()
	return NewUserService(st, testSecret), st
}

func TestCreateUser(t *testing.T) {
	svc, _ := newUserService()
	ctx := context.Background()

	u, err := svc.Create(ctx, "  Ana ", "secreto1", "Ana García")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if u.Username != "ana" {
		t.Errorf("username normalization: got %q", u.Username)
	}
	if u.Email != "ana@pos.local" {
		t.Errorf("synthesized email: got %q", u.Email)
	}
	if u.Role != enum.UserRoleCashier {
		t.Errorf("new accounts start as cashier, got %s", u.Role)
	}
	if u.HashedPassword == "secreto1" {
		t.Error("password stored in the clear")
	}
}

func TestCreateUserValidation(t *testing.T) {
	svc, _ := newUserService()
	ctx := context.Background()

	if _, err := svc.Create(ctx, "", "secreto1", "Ana"); !errors.Is(err, ErrUsernameRequired) {
		t.Errorf("blank username: got %v", err)
	}
	if _, err := svc.Create(ctx, "ana", "secreto1", "  "); !errors.Is(err, ErrNameRequired) {
		t.Errorf("blank name: got %v", err)
	}
	if _, err := svc.Create(ctx, "ana", "corta", "Ana"); !errors.Is(err, ErrPasswordTooShort) {
		t.Errorf("short password: got %v", err)
	}

	if _, err := svc.Create(ctx, "ana", "secreto1", "Ana"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Create(ctx, "ana", "secreto1", "Otra Ana"); !errors.Is(err, store.ErrDuplicateCode) {
		t.Errorf("duplicate username: got %v", err)
	}
}

func TestLogin(t *testing.T) {
	svc, _ := newUserService()
	ctx := context.Background()

	created, err := svc.Create(ctx, "ana", "secreto1", "Ana")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// By username, case-insensitive.
	token, user, err := svc.Login(ctx, " ANA ", "secreto1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if user.ID != created.ID {
		t.Errorf("wrong user: %s", user.ID)
	}
	claims, err := auth.ValidateToken(testSecret, token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}
	if claims.UserID != created.ID || claims.Role != enum.UserRoleCashier {
		t.Errorf("claims: %+v", claims)
	}

	// By synthesized email.
	if _, _, err := svc.Login(ctx, "ana@pos.local", "secreto1"); err != nil {
		t.Errorf("login by email: %v", err)
	}

	// Wrong password and unknown user collapse into the same error.
	if _, _, err := svc.Login(ctx, "ana", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("bad password: got %v", err)
	}
	if _, _, err := svc.Login(ctx, "nadie", "secreto1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown user: got %v", err)
	}
	if _, _, err := svc.Login(ctx, "", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("empty credentials: got %v", err)
	}
}

func TestLoginDeactivatedUser(t *testing.T) {
	svc, _ := newUserService()
	ctx := context.Background()

	created, err := svc.Create(ctx, "ana", "secreto1", "Ana")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.Deactivate(ctx, admin(), created.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	if _, _, err := svc.Login(ctx, "ana", "secreto1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("deactivated login: got %v", err)
	}
}

func TestUpdateUser(t *testing.T) {
	svc, _ := newUserService()
	ctx := context.Background()

	created, err := svc.Create(ctx, "ana", "secreto1", "Ana")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	newName := "Ana María"
	newRole := enum.UserRoleAdmin
	updated, err := svc.Update(ctx, created.ID, UpdateUserRequest{Name: &newName, Role: &newRole})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "Ana María" || updated.Role != enum.UserRoleAdmin {
		t.Errorf("update result: %+v", updated)
	}

	// Unknown roles are ignored, not applied.
	badRole := "SUPERUSER"
	updated, err = svc.Update(ctx, created.ID, UpdateUserRequest{Role: &badRole})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Role != enum.UserRoleAdmin {
		t.Errorf("bogus role applied: %s", updated.Role)
	}

	short := "abc"
	if _, err := svc.Update(ctx, created.ID, UpdateUserRequest{Password: &short}); !errors.Is(err, ErrPasswordTooShort) {
		t.Errorf("short password: got %v", err)
	}

	newPass := "nuevo-secreto"
	if _, err := svc.Update(ctx, created.ID, UpdateUserRequest{Password: &newPass}); err != nil {
		t.Fatalf("password update: %v", err)
	}
	if _, _, err := svc.Login(ctx, "ana", "nuevo-secreto"); err != nil {
		t.Errorf("login with new password: %v", err)
	}
	if _, _, err := svc.Login(ctx, "ana", "secreto1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("old password still works: %v", err)
	}

	if _, err := svc.Update(ctx, uuid.New(), UpdateUserRequest{Name: &newName}); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("unknown user: got %v", err)
	}
}

func TestDeactivateUser(t *testing.T) {
	svc, _ := newUserService()
	ctx := context.Background()

	created, err := svc.Create(ctx, "ana", "secreto1", "Ana")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Self-deactivation is refused before touching the store.
	self := admin()
	self.ID = created.ID
	if err := svc.Deactivate(ctx, self, created.ID); !errors.Is(err, ErrSelfDelete) {
		t.Errorf("self delete: got %v", err)
	}

	if err := svc.Deactivate(ctx, admin(), created.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	users, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(users) != 0 {
		t.Errorf("deactivated user still listed: %d", len(users))
	}

	// The row survives for historical references.
	if _, err := svc.Get(ctx, created.ID); err != nil {
		t.Errorf("get deactivated user: %v", err)
	}

	if err := svc.Deactivate(ctx, admin(), uuid.New()); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("unknown user: got %v", err)
	}
}
