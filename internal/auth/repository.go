package auth

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/matemarket/matemarket/internal/database"
	"github.com/matemarket/matemarket/internal/domain"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) CreateUser(ctx context.Context, name, email, passwordHash string, role domain.Role) (*domain.User, error) {
	user := &domain.User{
		ID:        uuid.New().String(),
		Name:      name,
		Email:     email,
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, password_hash, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
	`, user.ID, user.Name, user.Email, passwordHash, user.Role, user.CreatedAt)
	if err != nil {
		if database.IsUniqueViolation(err, "users_email_key") {
			return nil, domain.ErrEmailTaken
		}
		return nil, err
	}

	return user, nil
}

// UserByEmail returns the user and its password hash, or nil if absent.
func (r *Repository) UserByEmail(ctx context.Context, email string) (*domain.User, string, error) {
	user := &domain.User{}
	var hash string

	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, email, password_hash, role, created_at
		FROM users
		WHERE email = $1 AND deleted_at IS NULL
	`, email).Scan(&user.ID, &user.Name, &user.Email, &hash, &user.Role, &user.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, "", nil
		}
		return nil, "", err
	}

	return user, hash, nil
}

func (r *Repository) CreateSession(ctx context.Context, token, userID string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (token, user_id, created_at, expires_at)
		VALUES ($1, $2, NOW(), $3)
	`, token, userID, expiresAt)
	return err
}

// ActorByToken resolves a live session token to the actor it belongs to,
// or nil for unknown, expired, or deleted-user tokens.
func (r *Repository) ActorByToken(ctx context.Context, token string) (*domain.Actor, error) {
	actor := &domain.Actor{}

	err := r.db.QueryRowContext(ctx, `
		SELECT u.id, u.email, u.role
		FROM sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.token = $1 AND s.expires_at > NOW() AND u.deleted_at IS NULL
	`, token).Scan(&actor.ID, &actor.Email, &actor.Role)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return actor, nil
}

// UpdateRole sets a user's role. The caller enforces authorization.
func (r *Repository) UpdateRole(ctx context.Context, userID string, role domain.Role) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE users SET role = $1, updated_at = NOW() WHERE id = $2 AND deleted_at IS NULL
	`, role, userID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}
