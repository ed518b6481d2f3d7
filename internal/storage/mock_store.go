package storage

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
)

// MockStore is an in-memory implementation of Store for testing.
type MockStore struct {
	mu    sync.RWMutex
	files map[string][]byte
	calls MockCalls
	// FailWrites makes WriteFile fail for paths with this suffix.
	FailWrites string
}

// MockCalls tracks method invocations for test verification.
type MockCalls struct {
	Write   int // writes that changed content
	Skipped int // writes skipped because content was identical
	Read    int
	Exists  int
	List    int
	Delete  int
}

// NewMockStore creates a new in-memory store.
func NewMockStore() *MockStore {
	return &MockStore{files: make(map[string][]byte)}
}

// Root implements Store.
func (m *MockStore) Root() string { return "mem://" }

// WriteFile implements Store.
func (m *MockStore) WriteFile(_ context.Context, p string, data []byte) (bool, error) {
	c, err := Clean(p)
	if err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != "" && strings.HasSuffix(c, m.FailWrites) {
		return false, fmt.Errorf("mock write failure: %s", c)
	}
	if existing, ok := m.files[c]; ok && Hash(existing) == Hash(data) {
		m.calls.Skipped++
		return false, nil
	}
	m.calls.Write++
	m.files[c] = append([]byte(nil), data...)
	return true, nil
}

// ReadFile implements Store.
func (m *MockStore) ReadFile(_ context.Context, p string) ([]byte, error) {
	c, err := Clean(p)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Read++
	data, ok := m.files[c]
	if !ok {
		return nil, ErrNotFound{Path: p}
	}
	return append([]byte(nil), data...), nil
}

// Exists implements Store; directories exist when a file lives below them.
func (m *MockStore) Exists(_ context.Context, p string) (bool, error) {
	c, err := Clean(p)
	if err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Exists++
	if _, ok := m.files[c]; ok {
		return true, nil
	}
	for f := range m.files {
		if c == "." || strings.HasPrefix(f, c+"/") {
			return true, nil
		}
	}
	return false, nil
}

// Delete implements Store.
func (m *MockStore) Delete(_ context.Context, p string) error {
	c, err := Clean(p)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Delete++
	delete(m.files, c)
	return nil
}

// ListDirs implements Store.
func (m *MockStore) ListDirs(_ context.Context, dir string) ([]string, error) {
	c, err := Clean(dir)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.List++
	prefix := c + "/"
	if c == "." {
		prefix = ""
	}
	seen := map[string]bool{}
	for f := range m.files {
		rest, ok := strings.CutPrefix(f, prefix)
		if !ok {
			continue
		}
		if name, _, nested := strings.Cut(rest, "/"); nested {
			seen[name] = true
		}
	}
	if len(seen) == 0 {
		return nil, ErrNotFound{Path: dir}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

// GetCalls returns a copy of the call counters.
func (m *MockStore) GetCalls() MockCalls {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}

// Reset clears all files and counters.
func (m *MockStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files = make(map[string][]byte)
	m.calls = MockCalls{}
}

// File returns the content stored at p.
func (m *MockStore) File(p string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.files[path.Clean(p)]
	return data, ok
}

// Paths returns every stored path, sorted.
func (m *MockStore) Paths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.files))
	for p := range m.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// String returns a string representation for debugging.
func (m *MockStore) String() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fmt.Sprintf("MockStore{files: %d, calls: %+v}", len(m.files), m.calls)
}
