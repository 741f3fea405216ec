package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nkiryanov/todoserver/internal/apperrors"
	"github.com/nkiryanov/todoserver/internal/models"
)

type UserRepo struct {
	DB DBTX
}

const userColumns = `id, email, password_hash, is_active, is_staff, is_superuser, is_verified, created_at, updated_at`

const createUser = `-- name: CreateUser
INSERT INTO users (id, email, password_hash)
VALUES ($1, $2, $3)
RETURNING ` + userColumns

func (r *UserRepo) CreateUser(ctx context.Context, email string, hashedPassword string) (models.User, error) {
	rows, _ := r.DB.Query(ctx, createUser, uuid.New(), email, hashedPassword)
	user, err := pgx.CollectOneRow(rows, rowToUser)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return user, apperrors.ErrUserAlreadyExists
		}

		return user, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

const getUserByID = `-- name: GetUserByID
SELECT ` + userColumns + ` FROM users
WHERE id = $1
`

func (r *UserRepo) GetUserByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	rows, _ := r.DB.Query(ctx, getUserByID, id)
	return collectUser(rows)
}

const getUserByEmail = `-- name: GetUserByEmail
SELECT ` + userColumns + ` FROM users
WHERE email = $1
`

func (r *UserRepo) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	rows, _ := r.DB.Query(ctx, getUserByEmail, email)
	return collectUser(rows)
}

const setPassword = `-- name: SetPassword
UPDATE users
SET password_hash = $2, updated_at = clock_timestamp()
WHERE id = $1
RETURNING ` + userColumns

func (r *UserRepo) SetPassword(ctx context.Context, id uuid.UUID, hashedPassword string) (models.User, error) {
	rows, _ := r.DB.Query(ctx, setPassword, id, hashedPassword)
	return collectUser(rows)
}

// Rows already verified are returned untouched
const setVerified = `-- name: SetVerified
WITH updated AS (
	UPDATE users
	SET is_verified = TRUE, updated_at = clock_timestamp()
	WHERE id = $1 AND NOT is_verified
	RETURNING ` + userColumns + `
)
SELECT ` + userColumns + ` FROM updated
UNION ALL
SELECT ` + userColumns + ` FROM users WHERE id = $1 AND is_verified
`

func (r *UserRepo) SetVerified(ctx context.Context, id uuid.UUID) (models.User, error) {
	rows, _ := r.DB.Query(ctx, setVerified, id)
	return collectUser(rows)
}

func collectUser(rows pgx.Rows) (models.User, error) {
	user, err := pgx.CollectOneRow(rows, rowToUser)

	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, pgx.ErrNoRows):
		return user, apperrors.ErrUserNotFound
	default:
		return user, fmt.Errorf("db error: %w", err)
	}
}

func rowToUser(row pgx.CollectableRow) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.HashedPassword, &u.IsActive, &u.IsStaff, &u.IsSuperuser, &u.IsVerified, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}
