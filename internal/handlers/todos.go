package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/ytakahashi/firetodo/internal/services"
	"github.com/ytakahashi/firetodo/internal/todo"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

type TodoHandler struct {
	store services.RemoteStore
	todos *todo.Manager
}

func NewTodoHandler(store services.RemoteStore) *TodoHandler {
	return &TodoHandler{
		store: store,
		todos: todo.NewManager(store),
	}
}

type listResponse struct {
	todo.Page
	Stats todo.Stats `json:"stats"`
}

type todoRequest struct {
	Text      string `json:"text"`
	Deadline  string `json:"deadline"`
	Completed bool   `json:"completed"`
}

func (h *TodoHandler) List(c echo.Context) error {
	page := 1
	if raw := c.QueryParam("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fail(c, badRequest("page must be a number"))
		}
		page = n
	}

	all, err := h.todos.List(c.Request().Context(), currentUID(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, listResponse{
		Page:  todo.Paginate(all, page),
		Stats: todo.ComputeStats(all, NowTimeFunc()),
	})
}

func (h *TodoHandler) Create(c echo.Context) error {
	var req todoRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, err)
	}

	id, err := h.todos.AddTodo(c.Request().Context(), currentUID(c), req.Text, req.Deadline)
	if err != nil {
		return fail(c, err)
	}
	if id == "" {
		return fail(c, badRequest("text and deadline are required"))
	}
	return c.JSON(http.StatusCreated, map[string]string{"id": id})
}

func (h *TodoHandler) UpdateText(c echo.Context) error {
	var req todoRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, err)
	}

	ok, err := h.todos.UpdateTodoText(c.Request().Context(), currentUID(c), c.Param("id"), req.Text)
	if err != nil {
		return fail(c, err)
	}
	if !ok {
		return fail(c, badRequest("text is required"))
	}
	return c.NoContent(http.StatusNoContent)
}

// Toggle negates the completed value the client last saw.
func (h *TodoHandler) Toggle(c echo.Context) error {
	var req todoRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, err)
	}

	if err := h.todos.ToggleCompleted(c.Request().Context(), currentUID(c), c.Param("id"), req.Completed); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *TodoHandler) Flip(c echo.Context) error {
	completed, err := h.todos.FlipCompleted(c.Request().Context(), currentUID(c), c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"completed": completed})
}

func (h *TodoHandler) Delete(c echo.Context) error {
	if err := h.todos.DeleteTodo(c.Request().Context(), currentUID(c), c.Param("id")); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *TodoHandler) DeleteAll(c echo.Context) error {
	n, err := h.todos.DeleteAll(c.Request().Context(), currentUID(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]int{"deleted": n})
}
