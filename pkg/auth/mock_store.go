package auth

import (
	"sort"
	"sync"
)

// MockStore is an in-memory CredentialStore. Setting one of the error
// fields makes the matching operation fail with it.
type MockStore struct {
	mu       sync.RWMutex
	sessions map[string]Account
	stored   []string

	StoreError    error
	RetrieveError error
	ListError     error
	DeleteError   error
}

// NewMockStore returns an empty store
func NewMockStore() *MockStore {
	return &MockStore{sessions: make(map[string]Account)}
}

func (m *MockStore) Store(account *Account) error {
	if m.StoreError != nil {
		return m.StoreError
	}
	if account == nil || account.Username == "" {
		return ErrInvalidCredentials
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[account.Username] = *account
	m.stored = append(m.stored, account.Username)
	return nil
}

func (m *MockStore) Retrieve(username string) (*Account, error) {
	if m.RetrieveError != nil {
		return nil, m.RetrieveError
	}
	if username == "" {
		return nil, ErrInvalidCredentials
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	account, ok := m.sessions[username]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	return &account, nil
}

// List returns copies of the stored accounts ordered by name
func (m *MockStore) List() ([]*Account, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Account, 0, len(m.sessions))
	for _, account := range m.sessions {
		acc := account
		out = append(out, &acc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (m *MockStore) Delete(username string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}
	if username == "" {
		return ErrInvalidCredentials
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[username]; !ok {
		return ErrCredentialsNotFound
	}
	delete(m.sessions, username)
	return nil
}

func (m *MockStore) Exists(username string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.sessions[username]
	return ok
}

// Count returns the number of stored accounts
func (m *MockStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Stored returns the names passed to successful Store calls, in order
func (m *MockStore) Stored() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.stored...)
}

// NewMockManager returns a Manager backed by a single MockStore
func NewMockManager() (*Manager, *MockStore) {
	store := NewMockStore()
	return &Manager{stores: []CredentialStore{store}}, store
}

// NewMockManagerWithStores returns a Manager over stores in fallback order
func NewMockManagerWithStores(stores ...CredentialStore) *Manager {
	return &Manager{stores: stores}
}
