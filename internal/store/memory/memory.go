// Package memory provides an in-process Directory implementation. It backs
// unit tests and the degraded-mode fallback spool; it is not authoritative
// storage.
package memory

import (
	"context"
	"encoding/json"
	"reflect"
	"sync"

	"github.com/jwalitptl/telemed-api/internal/store"
)

type Store struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte
	err  error
}

func New() *Store {
	return &Store{data: make(map[string]map[string][]byte)}
}

// FailWith makes every subsequent operation return err until cleared with
// FailWith(nil). Lets tests and the reconciler suite simulate an outage.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *Store) Get(ctx context.Context, path string, out interface{}) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return s.err
	}
	parent, name := store.Split(path)
	raw, ok := s.data[parent][name]
	if !ok {
		return store.ErrNotFound
	}
	return json.Unmarshal(raw, out)
}

func (s *Store) GetAll(ctx context.Context, path string) (map[string]json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return nil, s.err
	}
	out := make(map[string]json.RawMessage, len(s.data[path]))
	for name, raw := range s.data[path] {
		cp := make(json.RawMessage, len(raw))
		copy(cp, raw)
		out[name] = cp
	}
	return out, nil
}

func (s *Store) Set(ctx context.Context, path string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	parent, name := store.Split(path)
	if s.data[parent] == nil {
		s.data[parent] = make(map[string][]byte)
	}
	s.data[parent][name] = raw
	return nil
}

func (s *Store) SetAll(ctx context.Context, path string, values map[string]interface{}) error {
	children := make(map[string][]byte, len(values))
	for name, value := range values {
		raw, err := json.Marshal(value)
		if err != nil {
			return err
		}
		children[name] = raw
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.data[path] = children
	return nil
}

func (s *Store) Update(ctx context.Context, path string, fields map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	parent, name := store.Split(path)
	doc := make(map[string]interface{})
	if raw, ok := s.data[parent][name]; ok {
		if err := json.Unmarshal(raw, &doc); err != nil {
			return err
		}
	}
	for k, v := range fields {
		doc[k] = v
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	if s.data[parent] == nil {
		s.data[parent] = make(map[string][]byte)
	}
	s.data[parent][name] = raw
	return nil
}

func (s *Store) Delete(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	parent, name := store.Split(path)
	delete(s.data[parent], name)
	return nil
}

func (s *Store) CompareAndSet(ctx context.Context, path string, expect, value interface{}) (bool, error) {
	expectRaw, err := json.Marshal(expect)
	if err != nil {
		return false, err
	}
	valueRaw, err := json.Marshal(value)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	parent, name := store.Split(path)
	cur, ok := s.data[parent][name]
	if !ok {
		return false, nil
	}
	if !jsonEqual(cur, expectRaw) {
		return false, nil
	}
	s.data[parent][name] = valueRaw
	return true, nil
}

func (s *Store) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

func (s *Store) Close() error { return nil }

// jsonEqual compares two JSON documents structurally, so key order and
// whitespace differences don't defeat the comparison.
func jsonEqual(a, b []byte) bool {
	var av, bv interface{}
	if err := json.Unmarshal(a, &av); err != nil {
		return false
	}
	if err := json.Unmarshal(b, &bv); err != nil {
		return false
	}
	return reflect.DeepEqual(av, bv)
}
