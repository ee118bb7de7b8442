package auth

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memStore is an in-memory Store with the same conditional-write semantics
// as Repository.
type memStore struct {
	mu       sync.Mutex
	accounts map[string]Account
	failWith error
}

func newMemStore() *memStore {
	return &memStore{accounts: make(map[string]Account)}
}

func (m *memStore) put(a Account) Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	m.accounts[a.ID] = a
	return a
}

func (m *memStore) get(id string) Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accounts[id]
}

func (m *memStore) GetByID(_ context.Context, id string) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return Account{}, m.failWith
	}
	a, ok := m.accounts[id]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return a, nil
}

func (m *memStore) GetByEmail(_ context.Context, email string) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return Account{}, m.failWith
	}
	for _, a := range m.accounts {
		if a.Email == email {
			return a, nil
		}
	}
	return Account{}, ErrAccountNotFound
}

func (m *memStore) GetByResetFingerprint(_ context.Context, fingerprint string, now time.Time) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.ResetFingerprint != "" && a.ResetFingerprint == fingerprint && a.ResetExpiresAt != nil && a.ResetExpiresAt.After(now) {
			return a, nil
		}
	}
	return Account{}, ErrAccountNotFound
}

func (m *memStore) RecordLogin(_ context.Context, id, fp string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return ErrAccountNotFound
	}
	a.RefreshFingerprint = fp
	a.LastLoginAt = &at
	m.accounts[id] = a
	return nil
}

func (m *memStore) SwapRefreshFingerprint(_ context.Context, id, expected, next string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok || !a.IsActive || expected == "" || a.RefreshFingerprint != expected {
		return false, nil
	}
	a.RefreshFingerprint = next
	m.accounts[id] = a
	return true, nil
}

func (m *memStore) ClearRefreshFingerprint(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return ErrAccountNotFound
	}
	a.RefreshFingerprint = ""
	m.accounts[id] = a
	return nil
}

func (m *memStore) UpdatePasswordHash(_ context.Context, id, hash, updatedBy string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return ErrAccountNotFound
	}
	a.PasswordHash = hash
	a.RefreshFingerprint = ""
	a.UpdatedBy = updatedBy
	m.accounts[id] = a
	return nil
}

func (m *memStore) SetResetToken(_ context.Context, id, fp string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return ErrAccountNotFound
	}
	a.ResetFingerprint = fp
	a.ResetExpiresAt = &expiresAt
	m.accounts[id] = a
	return nil
}

func (m *memStore) ConsumeResetToken(_ context.Context, id, fp, newHash string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok || a.ResetFingerprint != fp || a.ResetExpiresAt == nil || !a.ResetExpiresAt.After(now) {
		return false, nil
	}
	a.PasswordHash = newHash
	a.ResetFingerprint = ""
	a.ResetExpiresAt = nil
	a.RefreshFingerprint = ""
	m.accounts[id] = a
	return true, nil
}

func (m *memStore) ClearExpiredResetTokens(_ context.Context, now time.Time, batchSize int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, a := range m.accounts {
		if int(n) >= batchSize {
			break
		}
		if a.ResetExpiresAt != nil && !a.ResetExpiresAt.After(now) {
			a.ResetFingerprint = ""
			a.ResetExpiresAt = nil
			m.accounts[id] = a
			n++
		}
	}
	return n, nil
}

func (m *memStore) Create(_ context.Context, a Account) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.accounts {
		if existing.Email == a.Email {
			return Account{}, ErrEmailTaken
		}
	}
	a.ID = uuid.NewString()
	a.UpdatedBy = a.CreatedBy
	m.accounts[a.ID] = a
	return a, nil
}

func (m *memStore) List(_ context.Context) ([]Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Account, 0, len(m.accounts))
	for _, a := range m.accounts {
		out = append(out, a)
	}
	return out, nil
}

func (m *memStore) Update(_ context.Context, id string, c AccountChanges) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	if c.Role != nil {
		a.Role = *c.Role
	}
	if c.Tenant != nil {
		a.Tenant = *c.Tenant
	}
	if c.IsActive != nil {
		a.IsActive = *c.IsActive
		if !a.IsActive {
			a.RefreshFingerprint = ""
		}
	}
	a.UpdatedBy = c.UpdatedBy
	m.accounts[id] = a
	return a, nil
}

func (m *memStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[id]; !ok {
		return ErrAccountNotFound
	}
	delete(m.accounts, id)
	return nil
}
