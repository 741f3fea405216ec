package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/todoserver/internal/models"
)

type UserRepo interface {
	// Create unverified active user
	// If user with the email exists already has to return apperrors.ErrUserAlreadyExists
	CreateUser(ctx context.Context, email string, hashedPassword string) (models.User, error)

	// Get user by it's id or email
	// If user not found must return apperrors.ErrUserNotFound
	GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)

	// Replace password hash and bump 'updated_at'
	SetPassword(ctx context.Context, userID uuid.UUID, hashedPassword string) (models.User, error)

	// Mark user verified. Verifying already verified user is ok, 'updated_at' stays as is then
	SetVerified(ctx context.Context, userID uuid.UUID) (models.User, error)
}

// Opaque bearer tokens, at most one per user
type AuthTokenRepo interface {
	// Return existing user token or store the new key
	GetOrCreate(ctx context.Context, userID uuid.UUID, key string) (models.AuthToken, error)

	// Return user owning the key
	// If the key is unknown must return apperrors.ErrAuthTokenNotFound
	GetUser(ctx context.Context, key string) (models.User, error)

	// Delete user token. Deleting absent token is not an error
	Delete(ctx context.Context, userID uuid.UUID) error
}

// Markers of redeemed single-use tokens
type UsedTokenRepo interface {
	// Record the token as used
	// If the token is marked already must return apperrors.ErrTokenUsed
	MarkUsed(ctx context.Context, token models.UsedToken) (models.UsedToken, error)

	IsUsed(ctx context.Context, tokenID uuid.UUID) (bool, error)

	// Delete markers of tokens expired before the moment, they can't be presented anymore
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

type TaskOrder string

const (
	TaskOrderCreatedAsc  TaskOrder = "created_date"
	TaskOrderCreatedDesc TaskOrder = "-created_date"
)

type ListTasksOpts struct {
	UserID uuid.UUID
	IsDone *bool  // filter by status if set
	Search string // case insensitive substring of the content
	Order  TaskOrder
	Limit  int
	Offset int
}

type TaskRepo interface {
	CreateTask(ctx context.Context, userID uuid.UUID, content string, isDone bool) (models.Task, error)

	// Get task of the user
	// Tasks of the other users must be reported as apperrors.ErrTaskNotFound
	GetTask(ctx context.Context, userID uuid.UUID, taskID uuid.UUID) (models.Task, error)

	// Store content and status of the task, bump 'updated_at'
	UpdateTask(ctx context.Context, task models.Task) (models.Task, error)

	DeleteTask(ctx context.Context, userID uuid.UUID, taskID uuid.UUID) error

	// Return the page of user tasks and total count of tasks matched the filters
	ListTasks(ctx context.Context, opts ListTasksOpts) (tasks []models.Task, total int, err error)

	// Delete done tasks of all the users
	DeleteDoneTasks(ctx context.Context) (int64, error)
}

type Storage interface {
	User() UserRepo
	AuthToken() AuthTokenRepo
	UsedToken() UsedTokenRepo
	Task() TaskRepo

	// Run fn in transaction
	// Commit if fn returns nil, rollback otherwise
	InTx(ctx context.Context, fn func(Storage) error) error
}
