package database

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-process Store. Transactions are serialized by a single
// mutex, which makes it a faithful stand-in for tests and single-process runs.
type MemoryStore struct {
	mu   sync.Mutex
	docs map[string][]byte
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string][]byte)}
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memoryTx{store: s}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for _, op := range tx.ops {
		op()
	}
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, path string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.docs[path]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (s *MemoryStore) List(ctx context.Context, prefix string) ([]Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var docs []Document
	for path, data := range s.docs {
		if strings.HasPrefix(path, prefix) {
			docs = append(docs, Document{Path: path, Data: append([]byte(nil), data...)})
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Path < docs[j].Path })
	return docs, nil
}

// Len returns the number of stored documents.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs)
}

type memoryTx struct {
	store *MemoryStore
	ops   []func()
}

func (t *memoryTx) Get(ctx context.Context, path string) ([]byte, bool, error) {
	data, ok := t.store.docs[path]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), data...), true, nil
}

func (t *memoryTx) Set(path string, data []byte) error {
	cp := append([]byte(nil), data...)
	t.ops = append(t.ops, func() { t.store.docs[path] = cp })
	return nil
}

func (t *memoryTx) Delete(path string) error {
	t.ops = append(t.ops, func() { delete(t.store.docs, path) })
	return nil
}
