package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/chathub/sessionhub/internal/apperror"
	"github.com/chathub/sessionhub/internal/models"
)

// CreateUser inserts a new account with role defaulting to RoleUser.
// Grounded on 0DukePan's db.Database.CreateUser, adapted to an
// identity-column int64 id and the Role total order instead of a presence
// status column (presence now lives entirely in the Presence Tracker).
func (s *Store) CreateUser(ctx context.Context, username, email, passwordHash string) (models.User, error) {
	var user models.User
	err := s.pool.QueryRow(ctx,
		`INSERT INTO users (username, email, password_hash, role)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, username, email, password_hash, role, created_at`,
		username, email, passwordHash, models.RoleUser,
	).Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.Role, &user.CreatedAt)
	if err != nil {
		return models.User{}, apperror.Wrap(apperror.Transient, "failed to create user", err)
	}
	return user, nil
}

// GetUserByUsername looks up an account by username; returns NotFound if
// absent.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	var user models.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, username, email, password_hash, role, created_at
		 FROM users WHERE username = $1`,
		username,
	).Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.Role, &user.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.User{}, apperror.New(apperror.NotFound, "user not found")
	}
	if err != nil {
		return models.User{}, apperror.Wrap(apperror.Transient, "failed to query user", err)
	}
	return user, nil
}

// GetUserByID looks up an account by id; returns NotFound if absent.
func (s *Store) GetUserByID(ctx context.Context, userID int64) (models.User, error) {
	var user models.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, username, email, password_hash, role, created_at
		 FROM users WHERE id = $1`,
		userID,
	).Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.Role, &user.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.User{}, apperror.New(apperror.NotFound, "user not found")
	}
	if err != nil {
		return models.User{}, apperror.Wrap(apperror.Transient, "failed to query user", err)
	}
	return user, nil
}
