package todo

import (
	"context"
	"sort"
	"sync"

	"github.com/ytakahashi/firetodo/internal/models"
	"github.com/ytakahashi/firetodo/internal/services"
)

// Collection is the materialized todo list of one user. It holds at most one
// subscription; every notification replaces the list wholesale.
type Collection struct {
	store services.RemoteStore

	mu          sync.Mutex
	uid         string
	items       []Todo
	generation  int
	unsubscribe services.Unsubscribe
}

func NewCollection(store services.RemoteStore) *Collection {
	return &Collection{store: store}
}

// Open subscribes to the todos of uid, releasing any previous subscription
// first. onChange, if set, receives a copy of the list after each replacement.
func (c *Collection) Open(ctx context.Context, uid string, onChange func([]Todo)) error {
	c.mu.Lock()
	c.releaseLocked()
	c.generation++
	gen := c.generation
	c.uid = uid
	c.mu.Unlock()

	path := services.TodosPath(uid)
	unsubscribe, err := c.store.Subscribe(ctx, path, func(value map[string]any) {
		items := Materialize(value)

		c.mu.Lock()
		if gen != c.generation {
			c.mu.Unlock()
			return
		}
		c.items = items
		c.mu.Unlock()

		if onChange != nil {
			onChange(copyTodos(items))
		}
	})
	if err != nil {
		c.mu.Lock()
		if gen == c.generation {
			c.uid = ""
		}
		c.mu.Unlock()
		return services.WrapError("subscribe", path, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		// closed or reopened while subscribing
		unsubscribe()
		return nil
	}
	c.unsubscribe = unsubscribe
	return nil
}

// Close releases the subscription and empties the list.
func (c *Collection) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.releaseLocked()
	c.generation++
	c.uid = ""
}

func (c *Collection) releaseLocked() {
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
	c.items = nil
}

// Items returns a copy of the current list.
func (c *Collection) Items() []Todo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyTodos(c.items)
}

// UID returns the user the collection is open for, or "".
func (c *Collection) UID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.uid
}

// Materialize converts a collection snapshot into a list ordered by child key.
func Materialize(value map[string]any) []Todo {
	if len(value) == 0 {
		return []Todo{}
	}

	ids := make([]string, 0, len(value))
	for id := range value {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	todos := make([]Todo, 0, len(ids))
	for _, id := range ids {
		fields, _ := value[id].(map[string]any)
		todos = append(todos, models.TodoFromFields(id, fields))
	}
	return todos
}

func copyTodos(todos []Todo) []Todo {
	if todos == nil {
		return []Todo{}
	}
	return append([]Todo(nil), todos...)
}
