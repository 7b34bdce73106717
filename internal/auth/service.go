// Package auth supplies the thin session surface: registration, login,
// and middleware resolving a bearer token to the request's actor. The
// core trusts the resolved {id, role} and never re-verifies credentials.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/matemarket/matemarket/internal/domain"
)

const sessionTTL = 7 * 24 * time.Hour

type Service struct {
	repo *Repository
}

func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Register(ctx context.Context, name, email, password string) (*domain.User, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" || email == "" || len(password) < 8 {
		return nil, domain.ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	return s.repo.CreateUser(ctx, name, email, string(hash), domain.RoleUser)
}

// Login verifies credentials and issues an opaque session token.
func (s *Service) Login(ctx context.Context, email, password string) (*domain.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, hash, err := s.repo.UserByEmail(ctx, email)
	if err != nil {
		return nil, "", err
	}
	if user == nil {
		return nil, "", domain.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, "", domain.ErrInvalidCredentials
	}

	token, err := newToken()
	if err != nil {
		return nil, "", err
	}
	if err := s.repo.CreateSession(ctx, token, user.ID, time.Now().UTC().Add(sessionTTL)); err != nil {
		return nil, "", err
	}

	return user, token, nil
}

func (s *Service) Authenticate(ctx context.Context, token string) (*domain.Actor, error) {
	if token == "" {
		return nil, nil
	}
	return s.repo.ActorByToken(ctx, token)
}

// SetRole promotes or demotes a user. Admin only.
func (s *Service) SetRole(ctx context.Context, actor domain.Actor, userID string, role domain.Role) error {
	if !actor.IsAdmin() {
		return domain.ErrForbidden
	}
	if !role.Valid() {
		return fmt.Errorf("unknown role %q", role)
	}
	return s.repo.UpdateRole(ctx, userID, role)
}

func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
