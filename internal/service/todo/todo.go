package todo

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/nkiryanov/todoserver/internal/apperrors"
	"github.com/nkiryanov/todoserver/internal/models"
	"github.com/nkiryanov/todoserver/internal/repository"
)

const (
	DefaultPageSize = 5
	MaxPageSize     = 100
)

type ListOpts struct {
	IsDone   *bool
	Search   string
	Order    repository.TaskOrder
	Page     int // starts from 1
	PageSize int
}

type Page struct {
	Tasks    []models.Task
	Total    int
	Pages    int
	Number   int
	PageSize int
}

func (p Page) HasNext() bool {
	return p.Number < p.Pages
}

func (p Page) HasPrevious() bool {
	return p.Number > 1
}

// Fields to update, nil fields stay as is
type Patch struct {
	Content *string
	IsDone  *bool
}

// Every operation is scoped to the task author
type Service struct {
	taskRepo repository.TaskRepo
}

func NewService(taskRepo repository.TaskRepo) *Service {
	return &Service{taskRepo: taskRepo}
}

func (s *Service) Create(ctx context.Context, user models.User, content string, isDone bool) (models.Task, error) {
	return s.taskRepo.CreateTask(ctx, user.ID, content, isDone)
}

func (s *Service) Get(ctx context.Context, user models.User, taskID uuid.UUID) (models.Task, error) {
	return s.taskRepo.GetTask(ctx, user.ID, taskID)
}

// Replace content and status
func (s *Service) Update(ctx context.Context, user models.User, taskID uuid.UUID, content string, isDone bool) (models.Task, error) {
	return s.taskRepo.UpdateTask(ctx, models.Task{
		ID:      taskID,
		UserID:  user.ID,
		Content: content,
		IsDone:  isDone,
	})
}

func (s *Service) Patch(ctx context.Context, user models.User, taskID uuid.UUID, patch Patch) (models.Task, error) {
	task, err := s.taskRepo.GetTask(ctx, user.ID, taskID)
	if err != nil {
		return task, err
	}

	if patch.Content != nil {
		task.Content = *patch.Content
	}
	if patch.IsDone != nil {
		task.IsDone = *patch.IsDone
	}

	return s.taskRepo.UpdateTask(ctx, task)
}

func (s *Service) Delete(ctx context.Context, user models.User, taskID uuid.UUID) error {
	return s.taskRepo.DeleteTask(ctx, user.ID, taskID)
}

// List user tasks page by page, newest first unless other order requested
// Page beyond the last one is apperrors.ErrPageNotFound, first page always exists
func (s *Service) List(ctx context.Context, user models.User, opts ListOpts) (Page, error) {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	opts.PageSize = min(opts.PageSize, MaxPageSize)

	if opts.Page == 0 {
		opts.Page = 1
	}
	// Offset of such page doesn't fit int, there are no such many tasks anyway
	if opts.Page < 0 || opts.Page-1 > math.MaxInt/opts.PageSize {
		return Page{}, apperrors.ErrPageNotFound
	}

	if opts.Order == "" {
		opts.Order = repository.TaskOrderCreatedDesc
	}

	tasks, total, err := s.taskRepo.ListTasks(ctx, repository.ListTasksOpts{
		UserID: user.ID,
		IsDone: opts.IsDone,
		Search: opts.Search,
		Order:  opts.Order,
		Limit:  opts.PageSize,
		Offset: (opts.Page - 1) * opts.PageSize,
	})
	if err != nil {
		return Page{}, fmt.Errorf("error while listing tasks. Err: %w", err)
	}

	pages := max(1, (total+opts.PageSize-1)/opts.PageSize)
	if opts.Page > pages {
		return Page{}, apperrors.ErrPageNotFound
	}

	return Page{
		Tasks:    tasks,
		Total:    total,
		Pages:    pages,
		Number:   opts.Page,
		PageSize: opts.PageSize,
	}, nil
}

// Remove done tasks of all the users
func (s *Service) DeleteDone(ctx context.Context) (int64, error) {
	return s.taskRepo.DeleteDoneTasks(ctx)
}
