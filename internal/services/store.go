package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Unsubscribe releases a subscription. Calling it more than once is safe.
type Unsubscribe func()

// RemoteStore is a hierarchical key-path store with live subscriptions.
// Values are field maps; a collection value maps child keys to their fields.
// A nil map means the path holds nothing.
type RemoteStore interface {
	Write(ctx context.Context, path string, fields map[string]any) error
	Push(ctx context.Context, path string, fields map[string]any) (string, error)
	Update(ctx context.Context, path string, fields map[string]any) error
	Remove(ctx context.Context, path string) error
	Read(ctx context.Context, path string) (map[string]any, error)
	// Subscribe calls fn with the current value and again after every change
	// until the returned Unsubscribe is called.
	Subscribe(ctx context.Context, path string, fn func(map[string]any)) (Unsubscribe, error)
}

// Transactor is implemented by stores that can flip a boolean field atomically.
type Transactor interface {
	Negate(ctx context.Context, path, field string) (bool, error)
}

var (
	ErrInvalidPath = errors.New("invalid path")
	ErrNotFound    = errors.New("not found")
	ErrNotBool     = errors.New("field is not a boolean")
)

// StoreError reports a failed store operation.
type StoreError struct {
	Op   string
	Path string
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// WrapError tags err with the store operation and path that failed. Errors
// that are already a *StoreError are returned unchanged.
func WrapError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Path: path, Err: err}
}

// UserPath is the profile record of uid.
func UserPath(uid string) string {
	return "users/" + uid
}

// TodosPath is the todo collection of uid.
func TodosPath(uid string) string {
	return UserPath(uid) + "/todos"
}

// TodoPath is a single todo of uid.
func TodoPath(uid, id string) string {
	return TodosPath(uid) + "/" + id
}

// splitPath returns the segments of path or ErrInvalidPath when any is empty.
func splitPath(path string) ([]string, error) {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for _, s := range segments {
		if s == "" {
			return nil, ErrInvalidPath
		}
	}
	return segments, nil
}
