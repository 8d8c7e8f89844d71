// Package localstore keeps small string values on the local machine, the way a
// browser keeps local storage: synchronous, process local, keyed by name.
package localstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Store is a set of string slots.
type Store interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Remove(key string) error
	Clear() error
}

var (
	_ Store = (*Memory)(nil)
	_ Store = (*File)(nil)
)

// Memory keeps the slots in process memory.
type Memory struct {
	mu    sync.RWMutex
	slots map[string]string
}

func NewMemory() *Memory {
	return &Memory{slots: make(map[string]string)}
}

func (m *Memory) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.slots[key]
	return v, ok, nil
}

func (m *Memory) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots[key] = value
	return nil
}

func (m *Memory) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.slots, key)
	return nil
}

func (m *Memory) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots = make(map[string]string)
	return nil
}

// File keeps the slots as one JSON object on disk. Every write rewrites the
// file through a temporary file and a rename.
type File struct {
	mu   sync.Mutex
	path string
}

func NewFile(path string) (*File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create local storage directory: %w", err)
	}
	return &File{path: path}, nil
}

func (f *File) Path() string {
	return f.path
}

func (f *File) Get(key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	slots, err := f.load()
	if err != nil {
		return "", false, err
	}
	v, ok := slots[key]
	return v, ok, nil
}

func (f *File) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	slots, err := f.load()
	if err != nil {
		return err
	}
	slots[key] = value
	return f.save(slots)
}

func (f *File) Remove(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	slots, err := f.load()
	if err != nil {
		return err
	}
	if _, ok := slots[key]; !ok {
		return nil
	}
	delete(slots, key)
	return f.save(slots)
}

func (f *File) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear local storage: %w", err)
	}
	return nil
}

func (f *File) load() (map[string]string, error) {
	slots := make(map[string]string)
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return slots, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read local storage: %w", err)
	}
	if len(data) == 0 {
		return slots, nil
	}
	if err := json.Unmarshal(data, &slots); err != nil {
		return nil, fmt.Errorf("failed to decode local storage: %w", err)
	}
	return slots, nil
}

func (f *File) save(slots map[string]string) error {
	data, err := json.MarshalIndent(slots, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".localstore-*")
	if err != nil {
		return fmt.Errorf("failed to write local storage: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write local storage: %w", err)
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write local storage: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write local storage: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("failed to write local storage: %w", err)
	}
	return nil
}
