package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/todoserver/internal/apperrors"
	"github.com/nkiryanov/todoserver/internal/models"
)

type UsedTokenRepo struct {
	DB DBTX
}

const markTokenUsed = `-- name: MarkTokenUsed
INSERT INTO used_tokens (id, purpose, expires_at)
VALUES ($1, $2, $3)
ON CONFLICT (id) DO NOTHING
RETURNING id, purpose, expires_at, used_at
`

// Mark token used
// Conflict returns no rows, so the token has been redeemed already
func (r *UsedTokenRepo) MarkUsed(ctx context.Context, token models.UsedToken) (models.UsedToken, error) {
	rows, _ := r.DB.Query(ctx, markTokenUsed, token.ID, token.Purpose, token.ExpiresAt)
	used, err := pgx.CollectOneRow(rows, func(row pgx.CollectableRow) (models.UsedToken, error) {
		var t models.UsedToken
		err := row.Scan(&t.ID, &t.Purpose, &t.ExpiresAt, &t.UsedAt)
		return t, err
	})

	switch {
	case err == nil:
		return used, nil
	case errors.Is(err, pgx.ErrNoRows):
		return used, apperrors.ErrTokenUsed
	default:
		return used, fmt.Errorf("db error: %w", err)
	}
}

const isTokenUsed = `-- name: IsTokenUsed
SELECT EXISTS (SELECT 1 FROM used_tokens WHERE id = $1)
`

func (r *UsedTokenRepo) IsUsed(ctx context.Context, tokenID uuid.UUID) (bool, error) {
	var used bool
	err := r.DB.QueryRow(ctx, isTokenUsed, tokenID).Scan(&used)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return used, nil
}

const deleteExpiredTokens = `-- name: DeleteExpiredTokens
DELETE FROM used_tokens WHERE expires_at < $1
`

func (r *UsedTokenRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.DB.Exec(ctx, deleteExpiredTokens, before)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return tag.RowsAffected(), nil
}
