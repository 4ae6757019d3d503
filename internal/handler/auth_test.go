package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/pagofacil-pos/api/internal/domain"
	"github.com/pagofacil-pos/api/internal/enum"
	"github.com/pagofacil-pos/api/internal/middleware"
	"github.com/pagofacil-pos/api/internal/service"
)

type mockAuthService struct {
	loginFn func(ctx context.Context, login, password string) (string, *domain.User, error)
}

func (m *mockAuthService) Login(ctx context.Context, login, password string) (string, *domain.User, error) {
	if m.loginFn == nil {
		panic("unexpected Login call")
	}
	return m.loginFn(ctx, login, password)
}

func newAuthRouter(svc AuthServicer) chi.Router {
	h := NewAuthHandler(svc)
	r := chi.NewRouter()
	r.Route("/auth", func(r chi.Router) {
		h.RegisterRoutes(r)
		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(testSecret))
			h.RegisterProtectedRoutes(r)
		})
	})
	return r
}

func TestLoginHandler(t *testing.T) {
	user := &domain.User{
		ID:       uuid.New(),
		Username: "ana",
		Email:    "ana@pos.local",
		Name:     "Ana",
		Role:     enum.UserRoleCashier,
	}
	mock := &mockAuthService{
		loginFn: func(_ context.Context, login, password string) (string, *domain.User, error) {
			if login != "ana" || password != "secreto1" {
				t.Errorf("credentials passed through: %q/%q", login, password)
			}
			return "a.b.c", user, nil
		},
	}
	router := newAuthRouter(mock)

	rec := doJSON(t, router, http.MethodPost, "/auth/login", "",
		map[string]string{"username": "ana", "password": "secreto1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d (%s)", rec.Code, rec.Body.String())
	}

	var resp loginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Token != "a.b.c" || resp.User.Username != "ana" {
		t.Errorf("response: %+v", resp)
	}
}

func TestLoginHandlerErrors(t *testing.T) {
	mock := &mockAuthService{
		loginFn: func(context.Context, string, string) (string, *domain.User, error) {
			return "", nil, service.ErrInvalidCredentials
		},
	}
	router := newAuthRouter(mock)

	rec := doJSON(t, router, http.MethodPost, "/auth/login", "",
		map[string]string{"username": "ana", "password": "wrong"})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad credentials: got %d, want 401", rec.Code)
	}

	rec = doJSON(t, router, http.MethodPost, "/auth/login", "",
		map[string]string{"username": "", "password": ""})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty credentials: got %d, want 400", rec.Code)
	}
}

func TestMeEchoesClaims(t *testing.T) {
	router := newAuthRouter(&mockAuthService{})
	userID := uuid.New()

	rec := doJSON(t, router, http.MethodGet, "/auth/me", tokenFor(t, userID, enum.UserRoleAdmin), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}

	var resp struct {
		User struct {
			ID   uuid.UUID `json:"id"`
			Role string    `json:"role"`
		} `json:"user"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.User.ID != userID || resp.User.Role != enum.UserRoleAdmin {
		t.Errorf("claims echo: %+v", resp)
	}

	rec = doJSON(t, router, http.MethodGet, "/auth/me", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous /me: got %d, want 401", rec.Code)
	}
}
