// Package state persists small pieces of UI state between runs.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Store keeps a value in memory and mirrors every change to a JSON file.
type Store[T any] struct {
	mu       sync.RWMutex
	data     T
	path     string
	defaults func() T
}

// NewStore creates a store backed by path. defaults builds the value used
// when the file is missing or unreadable.
func NewStore[T any](path string, defaults func() T) *Store[T] {
	return &Store[T]{
		path:     path,
		defaults: defaults,
		data:     defaults(),
	}
}

// Load reads the file. A missing file is not an error; a corrupt one
// resets to defaults and reports why.
func (s *Store[T]) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.data = s.defaults()
		return nil
	}
	if err != nil {
		s.data = s.defaults()
		return fmt.Errorf("failed to read %s: %w", s.path, err)
	}

	data := s.defaults()
	if err := json.Unmarshal(raw, &data); err != nil {
		s.data = s.defaults()
		return fmt.Errorf("failed to parse %s: %w", s.path, err)
	}
	s.data = data
	return nil
}

// Get returns the current value.
func (s *Store[T]) Get() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data
}

// Set replaces the value and persists it.
func (s *Store[T]) Set(data T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = data
	return s.save()
}

// Update applies fn to the value and persists the result.
func (s *Store[T]) Update(fn func(T) T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = fn(s.data)
	return s.save()
}

// Clear resets to defaults and removes the file.
func (s *Store[T]) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = s.defaults()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// save writes through a temp file and rename so readers never see a
// partial file.
func (s *Store[T]) save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to rename state file: %w", err)
	}
	return nil
}
