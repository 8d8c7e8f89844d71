package services

import (
	"context"
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	_ RemoteStore = (*MemoryStore)(nil)
	_ Transactor  = (*MemoryStore)(nil)
)

// MemoryStore is an in-process RemoteStore with realtime-database semantics:
// Write replaces a subtree, Update merges into it and Remove prunes empty parents.
// Listeners are called synchronously by the goroutine that made the change,
// one change at a time in store order. A listener must not write to the store.
type MemoryStore struct {
	// deliver is held from applying a change until its listeners have run.
	deliver sync.Mutex

	mu        sync.Mutex
	root      map[string]any
	listeners map[int]*listener
	nextID    int
	entropy   *ulid.MonotonicEntropy
}

type listener struct {
	path []string
	fn   func(map[string]any)
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		root:      make(map[string]any),
		listeners: make(map[int]*listener),
		entropy:   ulid.Monotonic(rand.Reader, 0),
	}
}

func (m *MemoryStore) Write(ctx context.Context, path string, fields map[string]any) error {
	segments, err := splitPath(path)
	if err != nil {
		return WrapError("write", path, err)
	}
	if err := ctx.Err(); err != nil {
		return WrapError("write", path, err)
	}

	m.deliver.Lock()
	defer m.deliver.Unlock()
	m.mu.Lock()
	m.set(segments, copyMap(fields))
	notes := m.affected(segments)
	m.mu.Unlock()

	notify(notes)
	return nil
}

func (m *MemoryStore) Push(ctx context.Context, path string, fields map[string]any) (string, error) {
	segments, err := splitPath(path)
	if err != nil {
		return "", WrapError("push", path, err)
	}
	if err := ctx.Err(); err != nil {
		return "", WrapError("push", path, err)
	}

	m.deliver.Lock()
	defer m.deliver.Unlock()
	m.mu.Lock()
	id, err := ulid.New(ulid.Timestamp(time.Now()), m.entropy)
	if err != nil {
		m.mu.Unlock()
		return "", WrapError("push", path, err)
	}
	child := append(append([]string{}, segments...), id.String())
	m.set(child, copyMap(fields))
	notes := m.affected(child)
	m.mu.Unlock()

	notify(notes)
	return id.String(), nil
}

func (m *MemoryStore) Update(ctx context.Context, path string, fields map[string]any) error {
	segments, err := splitPath(path)
	if err != nil {
		return WrapError("update", path, err)
	}
	if err := ctx.Err(); err != nil {
		return WrapError("update", path, err)
	}

	m.deliver.Lock()
	defer m.deliver.Unlock()
	m.mu.Lock()
	node, _ := m.get(segments).(map[string]any)
	merged := copyMap(node)
	if merged == nil {
		merged = make(map[string]any)
	}
	for k, v := range fields {
		if v == nil {
			delete(merged, k)
			continue
		}
		merged[k] = copyValue(v)
	}
	m.set(segments, merged)
	notes := m.affected(segments)
	m.mu.Unlock()

	notify(notes)
	return nil
}

func (m *MemoryStore) Remove(ctx context.Context, path string) error {
	segments, err := splitPath(path)
	if err != nil {
		return WrapError("remove", path, err)
	}
	if err := ctx.Err(); err != nil {
		return WrapError("remove", path, err)
	}

	m.deliver.Lock()
	defer m.deliver.Unlock()
	m.mu.Lock()
	m.set(segments, nil)
	notes := m.affected(segments)
	m.mu.Unlock()

	notify(notes)
	return nil
}

func (m *MemoryStore) Read(ctx context.Context, path string) (map[string]any, error) {
	segments, err := splitPath(path)
	if err != nil {
		return nil, WrapError("read", path, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, WrapError("read", path, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	node, _ := m.get(segments).(map[string]any)
	return copyMap(node), nil
}

func (m *MemoryStore) Subscribe(ctx context.Context, path string, fn func(map[string]any)) (Unsubscribe, error) {
	segments, err := splitPath(path)
	if err != nil {
		return nil, WrapError("subscribe", path, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, WrapError("subscribe", path, err)
	}

	m.deliver.Lock()
	defer m.deliver.Unlock()
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = &listener{path: segments, fn: fn}
	node, _ := m.get(segments).(map[string]any)
	current := copyMap(node)
	m.mu.Unlock()

	fn(current)

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.listeners, id)
			m.mu.Unlock()
		})
	}, nil
}

// Negate flips a boolean field under the store lock. A missing field counts as false.
func (m *MemoryStore) Negate(ctx context.Context, path, field string) (bool, error) {
	segments, err := splitPath(path)
	if err != nil {
		return false, WrapError("negate", path, err)
	}
	if err := ctx.Err(); err != nil {
		return false, WrapError("negate", path, err)
	}

	m.deliver.Lock()
	defer m.deliver.Unlock()
	m.mu.Lock()
	node, ok := m.get(segments).(map[string]any)
	if !ok {
		m.mu.Unlock()
		return false, WrapError("negate", path, ErrNotFound)
	}
	current := node[field]
	if current == nil {
		current = false
	}
	b, ok := current.(bool)
	if !ok {
		m.mu.Unlock()
		return false, WrapError("negate", path, ErrNotBool)
	}
	node[field] = !b
	notes := m.affected(segments)
	m.mu.Unlock()

	notify(notes)
	return !b, nil
}

// Listeners returns the number of open subscriptions.
func (m *MemoryStore) Listeners() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.listeners)
}

func (m *MemoryStore) get(segments []string) any {
	var node any = m.root
	for _, s := range segments {
		parent, ok := node.(map[string]any)
		if !ok {
			return nil
		}
		node, ok = parent[s]
		if !ok {
			return nil
		}
	}
	return node
}

// set stores value at segments, creating parents as needed. A nil or empty
// value deletes the node and any parents left empty.
func (m *MemoryStore) set(segments []string, value map[string]any) {
	if len(value) == 0 {
		m.prune(m.root, segments)
		return
	}

	parent := m.root
	for _, s := range segments[:len(segments)-1] {
		child, ok := parent[s].(map[string]any)
		if !ok {
			child = make(map[string]any)
			parent[s] = child
		}
		parent = child
	}
	parent[segments[len(segments)-1]] = value
}

func (m *MemoryStore) prune(parent map[string]any, segments []string) bool {
	key := segments[0]
	if len(segments) == 1 {
		delete(parent, key)
		return len(parent) == 0
	}
	child, ok := parent[key].(map[string]any)
	if !ok {
		return false
	}
	if m.prune(child, segments[1:]) {
		delete(parent, key)
	}
	return len(parent) == 0
}

type notification struct {
	fn    func(map[string]any)
	value map[string]any
}

// affected collects the listeners whose path is an ancestor or descendant of changed.
func (m *MemoryStore) affected(changed []string) []notification {
	var notes []notification
	for id := 0; id < m.nextID; id++ {
		l, ok := m.listeners[id]
		if !ok || !overlaps(l.path, changed) {
			continue
		}
		node, _ := m.get(l.path).(map[string]any)
		notes = append(notes, notification{fn: l.fn, value: copyMap(node)})
	}
	return notes
}

func notify(notes []notification) {
	for _, n := range notes {
		n.fn(n.value)
	}
}

func overlaps(a, b []string) bool {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	return strings.Join(a[:n], "/") == strings.Join(b[:n], "/")
}

func copyMap(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = copyValue(v)
	}
	return dst
}

func copyValue(v any) any {
	if m, ok := v.(map[string]any); ok {
		return copyMap(m)
	}
	return v
}
