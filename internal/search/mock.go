package search

import (
	"context"
	"sync"
)

// MockBackend is an in-memory Backend for tests and dry runs. It supports
// failure injection so batch error paths can be exercised deterministically.
type MockBackend struct {
	mu      sync.Mutex
	indexes map[string]map[string]Document

	// FailWith, when non-nil, is returned by every IndexDocument call.
	FailWith error

	// FailPaths holds volume-relative paths whose IndexDocument calls fail
	// with FailErr (or FailWith if FailErr is nil).
	FailPaths map[string]error

	indexCalls int
}

// NewMockBackend creates an empty in-memory backend.
func NewMockBackend() *MockBackend {
	return &MockBackend{
		indexes: make(map[string]map[string]Document),
	}
}

// IndexDocument stores the document, honoring injected failures.
func (m *MockBackend) IndexDocument(ctx context.Context, index string, doc Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.indexCalls++

	if err, ok := m.FailPaths[doc.Path]; ok && err != nil {
		return err
	}
	if m.FailWith != nil {
		return m.FailWith
	}

	docs, ok := m.indexes[index]
	if !ok {
		docs = make(map[string]Document)
		m.indexes[index] = docs
	}
	docs[doc.ID] = doc
	return nil
}

// DeleteDocument removes a document if present.
func (m *MockBackend) DeleteDocument(ctx context.Context, index, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if docs, ok := m.indexes[index]; ok {
		delete(docs, id)
	}
	return nil
}

// DeleteIndex drops the whole index.
func (m *MockBackend) DeleteIndex(ctx context.Context, index string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.indexes, index)
	return nil
}

// Count returns the number of stored documents.
func (m *MockBackend) Count(ctx context.Context, index string) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return uint64(len(m.indexes[index])), nil
}

// Close is a no-op.
func (m *MockBackend) Close() error {
	return nil
}

// Get returns a stored document by ID.
func (m *MockBackend) Get(index, id string) (Document, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.indexes[index][id]
	return doc, ok
}

// IndexCalls returns how many IndexDocument calls were made, including failed
// ones.
func (m *MockBackend) IndexCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.indexCalls
}
