package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/todoserver/internal/apperrors"
	"github.com/nkiryanov/todoserver/internal/models"
)

type AuthTokenRepo struct {
	DB DBTX
}

// No-op update makes RETURNING emit the existing row on conflict
const getOrCreateAuthToken = `-- name: GetOrCreateAuthToken
INSERT INTO auth_tokens (key, user_id)
VALUES ($1, $2)
ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
RETURNING key, user_id, created_at
`

func (r *AuthTokenRepo) GetOrCreate(ctx context.Context, userID uuid.UUID, key string) (models.AuthToken, error) {
	rows, _ := r.DB.Query(ctx, getOrCreateAuthToken, key, userID)
	token, err := pgx.CollectOneRow(rows, func(row pgx.CollectableRow) (models.AuthToken, error) {
		var t models.AuthToken
		err := row.Scan(&t.Key, &t.UserID, &t.CreatedAt)
		return t, err
	})

	if err != nil {
		return token, fmt.Errorf("db error: %w", err)
	}

	return token, nil
}

const getAuthTokenUser = `-- name: GetAuthTokenUser
SELECT u.id, u.email, u.password_hash, u.is_active, u.is_staff, u.is_superuser, u.is_verified, u.created_at, u.updated_at
FROM auth_tokens t
JOIN users u ON u.id = t.user_id
WHERE t.key = $1
`

func (r *AuthTokenRepo) GetUser(ctx context.Context, key string) (models.User, error) {
	rows, _ := r.DB.Query(ctx, getAuthTokenUser, key)
	user, err := pgx.CollectOneRow(rows, rowToUser)

	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, pgx.ErrNoRows):
		return user, apperrors.ErrAuthTokenNotFound
	default:
		return user, fmt.Errorf("db error: %w", err)
	}
}

const deleteAuthToken = `-- name: DeleteAuthToken
DELETE FROM auth_tokens WHERE user_id = $1
`

func (r *AuthTokenRepo) Delete(ctx context.Context, userID uuid.UUID) error {
	_, err := r.DB.Exec(ctx, deleteAuthToken, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
