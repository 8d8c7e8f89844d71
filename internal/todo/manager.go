// Package todo keeps a user's todo collection in sync with the remote store.
package todo

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/ytakahashi/firetodo/internal/models"
	"github.com/ytakahashi/firetodo/internal/services"
)

type Todo = models.Todo

// Manager writes todo changes through to the store. Writes are not reflected
// locally; a Collection learns about them from its subscription.
type Manager struct {
	store services.RemoteStore
}

func NewManager(store services.RemoteStore) *Manager {
	return &Manager{store: store}
}

// AddTodo pushes a new incomplete todo and returns its id. Blank text or
// deadline is rejected without a write and yields an empty id.
func (m *Manager) AddTodo(ctx context.Context, uid, text, deadline string) (string, error) {
	if models.Blank(text) || models.Blank(deadline) {
		log.Debug().Str("uid", uid).Msg("Ignoring todo with blank text or deadline")
		return "", nil
	}

	path := services.TodosPath(uid)
	id, err := m.store.Push(ctx, path, models.TodoFields(text, deadline))
	if err != nil {
		return "", services.WrapError("push", path, err)
	}
	return id, nil
}

// UpdateTodoText replaces only the text of a todo. Blank text is rejected
// without a write and reports false.
func (m *Manager) UpdateTodoText(ctx context.Context, uid, id, text string) (bool, error) {
	if models.Blank(text) {
		log.Debug().Str("uid", uid).Str("id", id).Msg("Ignoring blank todo text")
		return false, nil
	}

	path := services.TodoPath(uid, id)
	if err := m.store.Update(ctx, path, map[string]any{"text": text}); err != nil {
		return false, services.WrapError("update", path, err)
	}
	return true, nil
}

// ToggleCompleted sets completed to the negation of the value the caller last
// saw. Two callers toggling from the same stale value both write the same
// result; use FlipCompleted when that matters.
func (m *Manager) ToggleCompleted(ctx context.Context, uid, id string, current bool) error {
	path := services.TodoPath(uid, id)
	if err := m.store.Update(ctx, path, map[string]any{"completed": !current}); err != nil {
		return services.WrapError("update", path, err)
	}
	return nil
}

// FlipCompleted negates completed against the stored value and returns the
// new value. Stores without transactions get a read followed by an update.
func (m *Manager) FlipCompleted(ctx context.Context, uid, id string) (bool, error) {
	path := services.TodoPath(uid, id)

	if tx, ok := m.store.(services.Transactor); ok {
		v, err := tx.Negate(ctx, path, "completed")
		if err != nil {
			return false, services.WrapError("negate", path, err)
		}
		return v, nil
	}

	fields, err := m.store.Read(ctx, path)
	if err != nil {
		return false, services.WrapError("read", path, err)
	}
	if fields == nil {
		return false, services.WrapError("negate", path, services.ErrNotFound)
	}
	current := models.TodoFromFields(id, fields).Completed
	if err := m.ToggleCompleted(ctx, uid, id, current); err != nil {
		return false, err
	}
	return !current, nil
}

// DeleteTodo removes a todo. Removing a missing id succeeds.
func (m *Manager) DeleteTodo(ctx context.Context, uid, id string) error {
	path := services.TodoPath(uid, id)
	if err := m.store.Remove(ctx, path); err != nil {
		return services.WrapError("remove", path, err)
	}
	return nil
}

// DeleteAll removes the whole collection and reports how many todos it held.
func (m *Manager) DeleteAll(ctx context.Context, uid string) (int, error) {
	path := services.TodosPath(uid)

	all, err := m.store.Read(ctx, path)
	if err != nil {
		return 0, services.WrapError("read", path, err)
	}
	if len(all) == 0 {
		return 0, nil
	}
	if err := m.store.Remove(ctx, path); err != nil {
		return 0, services.WrapError("remove", path, err)
	}
	return len(all), nil
}

// List reads the collection once, in the same order a Collection uses.
func (m *Manager) List(ctx context.Context, uid string) ([]Todo, error) {
	path := services.TodosPath(uid)
	all, err := m.store.Read(ctx, path)
	if err != nil {
		return nil, services.WrapError("read", path, err)
	}
	return Materialize(all), nil
}
