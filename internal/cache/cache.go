// Package cache is the durable key-value store behind every pipeline stage.
// Presence of a key is the only "already done" signal the stages use.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
)

// Backend is raw key/value storage for one namespace.
// Single-key operations must be atomic; nothing is guaranteed across keys.
type Backend interface {
	Init(ctx context.Context) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
}

// Store stores JSON values on top of a Backend.
type Store struct {
	name    string
	backend Backend
}

// NewStore wraps backend as a named JSON store.
func NewStore(name string, backend Backend) *Store {
	return &Store{name: name, backend: backend}
}

// Name returns the store name used in logs and errors.
func (s *Store) Name() string {
	return s.name
}

// Init prepares the underlying storage. It is safe to call repeatedly.
func (s *Store) Init(ctx context.Context) error {
	if err := s.backend.Init(ctx); err != nil {
		return fmt.Errorf("init %s store: %w", s.name, err)
	}
	return nil
}

// Get decodes the value stored under key into v.
// It reports false, with v untouched, when the key is absent.
func (s *Store) Get(ctx context.Context, key string, v any) (bool, error) {
	data, ok, err := s.backend.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("get %s/%s: %w", s.name, key, err)
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode %s/%s: %w", s.name, key, err)
	}
	return true, nil
}

// Has reports whether key is present.
func (s *Store) Has(ctx context.Context, key string) (bool, error) {
	_, ok, err := s.backend.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("get %s/%s: %w", s.name, key, err)
	}
	return ok, nil
}

// Set stores v under key, overwriting any previous value.
func (s *Store) Set(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", s.name, key, err)
	}
	if err := s.backend.Set(ctx, key, data); err != nil {
		return fmt.Errorf("set %s/%s: %w", s.name, key, err)
	}
	return nil
}

// Remove deletes key. Removing an absent key is not an error.
func (s *Store) Remove(ctx context.Context, key string) error {
	if err := s.backend.Remove(ctx, key); err != nil {
		return fmt.Errorf("remove %s/%s: %w", s.name, key, err)
	}
	return nil
}

// Keys returns every key in the store, in no particular order.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	keys, err := s.backend.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("list %s keys: %w", s.name, err)
	}
	return keys, nil
}

// Values returns every stored value, in no particular order.
func (s *Store) Values(ctx context.Context) ([]json.RawMessage, error) {
	keys, err := s.Keys(ctx)
	if err != nil {
		return nil, err
	}
	values := make([]json.RawMessage, 0, len(keys))
	for _, key := range keys {
		data, ok, err := s.backend.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("get %s/%s: %w", s.name, key, err)
		}
		if !ok {
			// removed between Keys and Get
			continue
		}
		values = append(values, json.RawMessage(data))
	}
	return values, nil
}
