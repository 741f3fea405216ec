package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/todoserver/internal/apperrors"
	"github.com/nkiryanov/todoserver/internal/handlers/middleware"
	"github.com/nkiryanov/todoserver/internal/handlers/render"
	"github.com/nkiryanov/todoserver/internal/handlers/userctx"
	"github.com/nkiryanov/todoserver/internal/logger"
	"github.com/nkiryanov/todoserver/internal/models"
	"github.com/nkiryanov/todoserver/internal/repository"
	"github.com/nkiryanov/todoserver/internal/service/todo"
)

type todoService interface {
	Create(ctx context.Context, user models.User, content string, isDone bool) (models.Task, error)
	Get(ctx context.Context, user models.User, taskID uuid.UUID) (models.Task, error)
	Update(ctx context.Context, user models.User, taskID uuid.UUID, content string, isDone bool) (models.Task, error)
	Patch(ctx context.Context, user models.User, taskID uuid.UUID, patch todo.Patch) (models.Task, error)
	Delete(ctx context.Context, user models.User, taskID uuid.UUID) error
	List(ctx context.Context, user models.User, opts todo.ListOpts) (todo.Page, error)
}

type TodoHandler struct {
	tasks  todoService
	auth   authenticator
	logger logger.Logger
}

type AuthorResponse struct {
	Email string    `json:"email"`
	ID    uuid.UUID `json:"id"`
}

type TaskListItem struct {
	Author      AuthorResponse `json:"author"`
	ID          uuid.UUID      `json:"id"`
	Snippet     string         `json:"snippet"`
	URL         string         `json:"url"`
	IsDone      bool           `json:"is_done"`
	CreatedDate time.Time      `json:"created_date"`
	UpdatedDate time.Time      `json:"updated_date"`
}

type TaskDetail struct {
	Author      AuthorResponse `json:"author"`
	ID          uuid.UUID      `json:"id"`
	Content     string         `json:"content"`
	IsDone      bool           `json:"is_done"`
	CreatedDate time.Time      `json:"created_date"`
	UpdatedDate time.Time      `json:"updated_date"`
}

type PageLinks struct {
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
}

type TaskPageResponse struct {
	Links      PageLinks      `json:"links"`
	TotalTasks int            `json:"total_tasks"`
	TotalPages int            `json:"total_pages"`
	Results    []TaskListItem `json:"results"`
}

func NewTodo(tasks todoService, auth authenticator, l logger.Logger) *TodoHandler {
	return &TodoHandler{tasks: tasks, auth: auth, logger: l}
}

func (h *TodoHandler) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /task/{$}", h.list)
	mux.HandleFunc("POST /task/{$}", h.create)
	mux.HandleFunc("GET /task/{id}/{$}", h.get)
	mux.HandleFunc("PUT /task/{id}/{$}", h.update)
	mux.HandleFunc("PATCH /task/{id}/{$}", h.patch)
	mux.HandleFunc("DELETE /task/{id}/{$}", h.delete)

	return chain(mux,
		middleware.AuthMiddleware(h.auth),
		middleware.VerifiedMiddleware,
	)
}

func (h *TodoHandler) list(w http.ResponseWriter, r *http.Request) {
	user, ok := userctx.FromContext(r.Context())
	if !ok {
		h.internalError(w, errors.New("no user in authenticated request"))
		return
	}

	query := r.URL.Query()
	opts := todo.ListOpts{
		Search: query.Get("search"),
		Order:  repository.TaskOrder(query.Get("ordering")),
	}

	// Unknown ordering is ignored
	if opts.Order != repository.TaskOrderCreatedAsc && opts.Order != repository.TaskOrderCreatedDesc {
		opts.Order = ""
	}

	if v := query.Get("is_done"); v != "" {
		isDone, err := strconv.ParseBool(v)
		if err != nil {
			render.FieldErrors(w, map[string]string{"is_done": "Select a valid choice"})
			return
		}
		opts.IsDone = &isDone
	}

	// Page must be a number, page size falls back to default
	if v := query.Get("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			render.ServiceError(w, "Invalid page", http.StatusNotFound)
			return
		}
		opts.Page = page
	}
	if v := query.Get("page_size"); v != "" {
		if size, err := strconv.Atoi(v); err == nil {
			opts.PageSize = size
		}
	}

	page, err := h.tasks.List(r.Context(), user, opts)
	switch {
	case err == nil:
	case errors.Is(err, apperrors.ErrPageNotFound):
		render.ServiceError(w, "Invalid page", http.StatusNotFound)
		return
	default:
		h.internalError(w, err)
		return
	}

	base := absoluteURL(r)
	res := TaskPageResponse{
		TotalTasks: page.Total,
		TotalPages: page.Pages,
		Results:    make([]TaskListItem, 0, len(page.Tasks)),
	}
	if page.HasNext() {
		res.Links.Next = pageLink(base, page.Number+1)
	}
	if page.HasPrevious() {
		res.Links.Previous = pageLink(base, page.Number-1)
	}
	for _, task := range page.Tasks {
		res.Results = append(res.Results, listItem(base, user, task))
	}

	render.JSON(w, res)
}

func (h *TodoHandler) create(w http.ResponseWriter, r *http.Request) {
	type CreateRequest struct {
		Content string `json:"content" validate:"required,max=255"`
		IsDone  bool   `json:"is_done"`
	}

	user, ok := userctx.FromContext(r.Context())
	if !ok {
		h.internalError(w, errors.New("no user in authenticated request"))
		return
	}

	data, err := render.BindAndValidate[CreateRequest](w, r)
	if err != nil {
		return
	}

	task, err := h.tasks.Create(r.Context(), user, data.Content, data.IsDone)
	if err != nil {
		h.internalError(w, err)
		return
	}

	render.JSONWithStatus(w, listItem(absoluteURL(r), user, task), http.StatusCreated)
}

func (h *TodoHandler) get(w http.ResponseWriter, r *http.Request) {
	user, taskID, ok := h.target(w, r)
	if !ok {
		return
	}

	task, err := h.tasks.Get(r.Context(), user, taskID)
	h.renderTask(w, user, task, err)
}

func (h *TodoHandler) update(w http.ResponseWriter, r *http.Request) {
	type UpdateRequest struct {
		Content string `json:"content" validate:"required,max=255"`
		IsDone  bool   `json:"is_done"`
	}

	user, taskID, ok := h.target(w, r)
	if !ok {
		return
	}

	data, err := render.BindAndValidate[UpdateRequest](w, r)
	if err != nil {
		return
	}

	task, err := h.tasks.Update(r.Context(), user, taskID, data.Content, data.IsDone)
	h.renderTask(w, user, task, err)
}

func (h *TodoHandler) patch(w http.ResponseWriter, r *http.Request) {
	type PatchRequest struct {
		Content *string `json:"content" validate:"omitnil,min=1,max=255"`
		IsDone  *bool   `json:"is_done"`
	}

	user, taskID, ok := h.target(w, r)
	if !ok {
		return
	}

	data, err := render.BindAndValidate[PatchRequest](w, r)
	if err != nil {
		return
	}

	task, err := h.tasks.Patch(r.Context(), user, taskID, todo.Patch{Content: data.Content, IsDone: data.IsDone})
	h.renderTask(w, user, task, err)
}

func (h *TodoHandler) delete(w http.ResponseWriter, r *http.Request) {
	user, taskID, ok := h.target(w, r)
	if !ok {
		return
	}

	err := h.tasks.Delete(r.Context(), user, taskID)
	switch {
	case err == nil:
		render.NoContent(w)
	case errors.Is(err, apperrors.ErrTaskNotFound):
		render.ServiceError(w, "Not found", http.StatusNotFound)
	default:
		h.internalError(w, err)
	}
}

// Extract user and task id of the detail request
// Malformed id can't match any task, so it's not found
func (h *TodoHandler) target(w http.ResponseWriter, r *http.Request) (models.User, uuid.UUID, bool) {
	user, ok := userctx.FromContext(r.Context())
	if !ok {
		h.internalError(w, errors.New("no user in authenticated request"))
		return user, uuid.Nil, false
	}

	taskID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		render.ServiceError(w, "Not found", http.StatusNotFound)
		return user, uuid.Nil, false
	}

	return user, taskID, true
}

func (h *TodoHandler) renderTask(w http.ResponseWriter, user models.User, task models.Task, err error) {
	switch {
	case err == nil:
		render.JSON(w, TaskDetail{
			Author:      AuthorResponse{Email: user.Email, ID: user.ID},
			ID:          task.ID,
			Content:     task.Content,
			IsDone:      task.IsDone,
			CreatedDate: task.CreatedAt,
			UpdatedDate: task.UpdatedAt,
		})
	case errors.Is(err, apperrors.ErrTaskNotFound):
		render.ServiceError(w, "Not found", http.StatusNotFound)
	default:
		h.internalError(w, err)
	}
}

func (h *TodoHandler) internalError(w http.ResponseWriter, err error) {
	h.logger.Error("error while handling todo request", "error", err)
	render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
}

func listItem(base *url.URL, user models.User, task models.Task) TaskListItem {
	u := *base
	u.RawQuery = ""
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + task.ID.String() + "/"

	return TaskListItem{
		Author:      AuthorResponse{Email: user.Email, ID: user.ID},
		ID:          task.ID,
		Snippet:     task.Snippet(),
		URL:         u.String(),
		IsDone:      task.IsDone,
		CreatedDate: task.CreatedAt,
		UpdatedDate: task.UpdatedAt,
	}
}

// Link to the other page keeping the rest of query
// First page is linked without page number
func pageLink(base *url.URL, number int) *string {
	u := *base
	query := u.Query()
	if number == 1 {
		query.Del("page")
	} else {
		query.Set("page", strconv.Itoa(number))
	}
	u.RawQuery = query.Encode()

	link := u.String()
	return &link
}

// Absolute URL of the request as the client sent it, before any prefix was stripped
func absoluteURL(r *http.Request) *url.URL {
	u, err := url.ParseRequestURI(r.RequestURI)
	if err != nil {
		u = &url.URL{Path: r.URL.Path, RawQuery: r.URL.RawQuery}
	}

	u.Host = r.Host
	u.Scheme = "http"
	if r.TLS != nil {
		u.Scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto == "http" || proto == "https" {
		u.Scheme = proto
	}

	return u
}
