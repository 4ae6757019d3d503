package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/pagofacil-pos/api/internal/auth"
	"github.com/pagofacil-pos/api/internal/domain"
	"github.com/pagofacil-pos/api/internal/enum"
	"github.com/pagofacil-pos/api/internal/store"
	"golang.org/x/crypto/bcrypt"
)

var ErrUserNotFound = errors.New("user not found")

// UserService owns account management and login.
type UserService struct {
	store     store.Store
	jwtSecret string
}

func NewUserService(st store.Store, jwtSecret string) *UserService {
	return &UserService{store: st, jwtSecret: jwtSecret}
}

// Login resolves an active account by username or email and returns a signed
// token. A wrong username and a wrong password are indistinguishable.
func (s *UserService) Login(ctx context.Context, login, password string) (string, *domain.User, error) {
	login = strings.ToLower(strings.TrimSpace(login))
	if login == "" || password == "" {
		return "", nil, ErrInvalidCredentials
	}

	user, err := s.store.GetUserByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := auth.GenerateToken(s.jwtSecret, user.ID, user.Name, user.Role)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// Create registers a cashier account. The email is synthesized from the
// username; only an explicit role update can promote to admin.
func (s *UserService) Create(ctx context.Context, username, password, name string) (*domain.User, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return nil, ErrUsernameRequired
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}
	if len(password) < 6 {
		return nil, ErrPasswordTooShort
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	return s.store.CreateUser(ctx, domain.User{
		Username:       username,
		Email:          username + "@pos.local",
		Name:           name,
		Role:           enum.UserRoleCashier,
		HashedPassword: string(hashed),
		Active:         true,
	})
}

// UpdateUserRequest is a partial account update; nil fields stay unchanged.
type UpdateUserRequest struct {
	Name     *string
	Role     *string
	Password *string
}

func (s *UserService) Update(ctx context.Context, id uuid.UUID, req UpdateUserRequest) (*domain.User, error) {
	user, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if req.Name != nil {
		if name := strings.TrimSpace(*req.Name); name != "" {
			user.Name = name
		}
	}
	if req.Role != nil {
		switch *req.Role {
		case enum.UserRoleAdmin, enum.UserRoleCashier:
			user.Role = *req.Role
		}
	}
	if req.Password != nil {
		if len(*req.Password) < 6 {
			return nil, ErrPasswordTooShort
		}
		hashed, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		user.HashedPassword = string(hashed)
	}

	updated, err := s.store.UpdateUser(ctx, *user)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return updated, nil
}

func (s *UserService) List(ctx context.Context) ([]domain.User, error) {
	return s.store.ListActiveUsers(ctx)
}

func (s *UserService) Get(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	user, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// Deactivate keeps the row so historical seller ids stay resolvable. Actors
// cannot deactivate themselves.
func (s *UserService) Deactivate(ctx context.Context, actor domain.Actor, id uuid.UUID) error {
	if actor.ID == id {
		return ErrSelfDelete
	}
	err := s.store.DeactivateUser(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return ErrUserNotFound
	}
	return err
}
