package artifact

import (
	"context"
	"strings"
	"sync"
)

// MockStore keeps refs in memory and never talks to the network. Locators
// are the gateway URL followed by the content id, so the same bytes always
// produce the same locator.
type MockStore struct {
	gateway string

	mu   sync.RWMutex
	refs map[string]Ref
	data map[string][]byte
}

func NewMockStore(gateway string) *MockStore {
	if gateway != "" && !strings.HasSuffix(gateway, "/") {
		gateway += "/"
	}
	return &MockStore{gateway: gateway, refs: map[string]Ref{}, data: map[string][]byte{}}
}

func (m *MockStore) Upload(_ context.Context, data []byte, name string) (Ref, error) {
	cid := ContentID(data)
	ref := Ref{Locator: m.gateway + "mock-" + cid, ContentID: cid}

	m.mu.Lock()
	m.refs[name] = ref
	m.data[name] = append([]byte(nil), data...)
	m.mu.Unlock()
	return ref, nil
}

func (m *MockStore) Fetch(_ context.Context, name string) (Ref, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ref, ok := m.refs[name]
	if !ok {
		return Ref{}, ErrNotStored
	}
	return ref, nil
}

// Bytes returns what was uploaded under name.
func (m *MockStore) Bytes(name string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.data[name]
	return b, ok
}
