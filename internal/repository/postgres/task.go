package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/todoserver/internal/apperrors"
	"github.com/nkiryanov/todoserver/internal/models"
	"github.com/nkiryanov/todoserver/internal/repository"
)

type TaskRepo struct {
	DB DBTX
}

const taskColumns = `id, user_id, content, is_done, created_at, updated_at`

const createTask = `-- name: CreateTask
INSERT INTO tasks (id, user_id, content, is_done)
VALUES ($1, $2, $3, $4)
RETURNING ` + taskColumns

func (r *TaskRepo) CreateTask(ctx context.Context, userID uuid.UUID, content string, isDone bool) (models.Task, error) {
	rows, _ := r.DB.Query(ctx, createTask, uuid.New(), userID, content, isDone)
	task, err := pgx.CollectOneRow(rows, rowToTask)
	if err != nil {
		return task, fmt.Errorf("db error: %w", err)
	}
	return task, nil
}

const getTask = `-- name: GetTask
SELECT ` + taskColumns + ` FROM tasks
WHERE id = $1 AND user_id = $2
`

func (r *TaskRepo) GetTask(ctx context.Context, userID uuid.UUID, taskID uuid.UUID) (models.Task, error) {
	rows, _ := r.DB.Query(ctx, getTask, taskID, userID)
	return collectTask(rows)
}

const updateTask = `-- name: UpdateTask
UPDATE tasks
SET content = $3, is_done = $4, updated_at = clock_timestamp()
WHERE id = $1 AND user_id = $2
RETURNING ` + taskColumns

func (r *TaskRepo) UpdateTask(ctx context.Context, task models.Task) (models.Task, error) {
	rows, _ := r.DB.Query(ctx, updateTask, task.ID, task.UserID, task.Content, task.IsDone)
	return collectTask(rows)
}

const deleteTask = `-- name: DeleteTask
DELETE FROM tasks WHERE id = $1 AND user_id = $2
`

func (r *TaskRepo) DeleteTask(ctx context.Context, userID uuid.UUID, taskID uuid.UUID) error {
	tag, err := r.DB.Exec(ctx, deleteTask, taskID, userID)
	switch {
	case err != nil:
		return fmt.Errorf("db error: %w", err)
	case tag.RowsAffected() == 0:
		return apperrors.ErrTaskNotFound
	default:
		return nil
	}
}

const taskFilters = `
WHERE user_id = @user_id
	AND (@is_done::boolean IS NULL OR is_done = @is_done::boolean)
	AND (@search::text = '' OR content ILIKE '%' || @search::text || '%')
`

const countTasks = `-- name: CountTasks
SELECT count(*) FROM tasks` + taskFilters

const listTasks = `-- name: ListTasks
SELECT ` + taskColumns + ` FROM tasks` + taskFilters

// Wildcards in user search must match literally
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (r *TaskRepo) ListTasks(ctx context.Context, opts repository.ListTasksOpts) ([]models.Task, int, error) {
	args := pgx.NamedArgs{
		"user_id": opts.UserID,
		"is_done": opts.IsDone,
		"search":  likeEscaper.Replace(opts.Search),
		"limit":   opts.Limit,
		"offset":  opts.Offset,
	}

	var total int
	err := r.DB.QueryRow(ctx, countTasks, args).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}

	order := "created_at DESC, id DESC"
	if opts.Order == repository.TaskOrderCreatedAsc {
		order = "created_at ASC, id ASC"
	}

	query := listTasks + "ORDER BY " + order + "\nLIMIT @limit OFFSET @offset"
	rows, _ := r.DB.Query(ctx, query, args)
	tasks, err := pgx.CollectRows(rows, rowToTask)
	if err != nil {
		return nil, 0, fmt.Errorf("db error: %w", err)
	}

	return tasks, total, nil
}

const deleteDoneTasks = `-- name: DeleteDoneTasks
DELETE FROM tasks WHERE is_done
`

func (r *TaskRepo) DeleteDoneTasks(ctx context.Context) (int64, error) {
	tag, err := r.DB.Exec(ctx, deleteDoneTasks)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return tag.RowsAffected(), nil
}

func collectTask(rows pgx.Rows) (models.Task, error) {
	task, err := pgx.CollectOneRow(rows, rowToTask)

	switch {
	case err == nil:
		return task, nil
	case errors.Is(err, pgx.ErrNoRows):
		return task, apperrors.ErrTaskNotFound
	default:
		return task, fmt.Errorf("db error: %w", err)
	}
}

func rowToTask(row pgx.CollectableRow) (models.Task, error) {
	var t models.Task
	err := row.Scan(&t.ID, &t.UserID, &t.Content, &t.IsDone, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}
