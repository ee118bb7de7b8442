package account

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"hris-portal/internal/auth"
)

type fakeStore struct {
	mu       sync.Mutex
	accounts map[string]auth.Account
	order    []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{accounts: make(map[string]auth.Account)}
}

func (f *fakeStore) GetByID(_ context.Context, id string) (auth.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[id]
	if !ok {
		return auth.Account{}, auth.ErrAccountNotFound
	}
	return a, nil
}

func (f *fakeStore) Create(_ context.Context, a auth.Account) (auth.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.accounts {
		if existing.Email == a.Email {
			return auth.Account{}, auth.ErrEmailTaken
		}
	}
	a.ID = uuid.NewString()
	f.accounts[a.ID] = a
	f.order = append(f.order, a.ID)
	return a, nil
}

func (f *fakeStore) List(_ context.Context) ([]auth.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]auth.Account, 0, len(f.order))
	for _, id := range f.order {
		if a, ok := f.accounts[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeStore) Update(_ context.Context, id string, c auth.AccountChanges) (auth.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[id]
	if !ok {
		return auth.Account{}, auth.ErrAccountNotFound
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
	f.accounts[id] = a
	return a, nil
}

func (f *fakeStore) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.accounts[id]; !ok {
		return auth.ErrAccountNotFound
	}
	delete(f.accounts, id)
	return nil
}

func (f *fakeStore) seed(role auth.Role) auth.Account {
	f.mu.Lock()
	defer f.mu.Unlock()
	a := auth.Account{
		ID:                 uuid.NewString(),
		Email:              string(role) + "-" + uuid.NewString()[:8] + "@h.com",
		PasswordHash:       "hash",
		Tenant:             "General Hospital",
		Role:               role,
		IsActive:           true,
		RefreshFingerprint: "fp",
	}
	f.accounts[a.ID] = a
	f.order = append(f.order, a.ID)
	return a
}

func newTestService(t *testing.T) (*Service, *fakeStore) {
	t.Helper()
	hasher, err := auth.NewPasswordHasher(bcrypt.MinCost)
	require.NoError(t, err)
	store := newFakeStore()
	return NewService(store, hasher, nil), store
}

func identityOf(a auth.Account) auth.Identity {
	return auth.Identity{AccountID: a.ID, Email: a.Email, Role: a.Role}
}

func TestCreateAccount(t *testing.T) {
	svc, store := newTestService(t)
	admin := identityOf(store.seed(auth.RoleAdmin))

	view, err := svc.Create(context.Background(), admin, CreateInput{
		Email: " New@H.com", Password: "Secret123", Tenant: "General Hospital",
	})
	require.NoError(t, err)
	assert.Equal(t, "new@h.com", view.Email)
	assert.Equal(t, auth.RoleGuest, view.Role)
	assert.True(t, view.IsActive)
	assert.Equal(t, admin.AccountID, view.CreatedBy)

	stored, err := store.GetByID(context.Background(), view.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "Secret123", stored.PasswordHash)

	_, err = svc.Create(context.Background(), admin, CreateInput{
		Email: "new@h.com", Password: "Secret123", Tenant: "General Hospital",
	})
	assert.ErrorIs(t, err, auth.ErrEmailTaken)
}

func TestCreateAccountValidation(t *testing.T) {
	svc, store := newTestService(t)
	sys := identityOf(store.seed(auth.RoleSystemAdmin))

	tests := []struct {
		name    string
		in      CreateInput
		message string
	}{
		{"missing tenant", CreateInput{Email: "a@h.com", Password: "Secret123"}, "Email, password and tenant are required"},
		{"bad email", CreateInput{Email: "a@h", Password: "Secret123", Tenant: "T"}, "Invalid email format"},
		{"weak password", CreateInput{Email: "a@h.com", Password: "secret", Tenant: "T"}, passwordFormatMessage},
		{"bad role", CreateInput{Email: "a@h.com", Password: "Secret123", Tenant: "T", Role: "root"}, "Invalid role. Must be one of: user, admin, guest, systemAdmin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), sys, tt.in)
			assert.ErrorIs(t, err, auth.ErrValidation)
			_, message := auth.StatusFor(err)
			assert.Equal(t, tt.message, message)
		})
	}
}

func TestCreatePrivilegedAccountRequiresSystemAdmin(t *testing.T) {
	svc, store := newTestService(t)
	admin := identityOf(store.seed(auth.RoleAdmin))
	sys := identityOf(store.seed(auth.RoleSystemAdmin))
	user := identityOf(store.seed(auth.RoleUser))

	in := CreateInput{Email: "boss@h.com", Password: "Secret123", Tenant: "T", Role: "admin"}

	_, err := svc.Create(context.Background(), admin, in)
	assert.ErrorIs(t, err, auth.ErrForbidden)

	_, err = svc.Create(context.Background(), user, in)
	assert.ErrorIs(t, err, auth.ErrForbidden)

	view, err := svc.Create(context.Background(), sys, in)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleAdmin, view.Role)
}

func TestEditAccount(t *testing.T) {
	svc, store := newTestService(t)
	admin := identityOf(store.seed(auth.RoleAdmin))
	target := store.seed(auth.RoleGuest)
	ctx := context.Background()

	role := "user"
	tenant := " North Clinic "
	view, err := svc.Edit(ctx, admin, target.ID, EditInput{Role: &role, Tenant: &tenant})
	require.NoError(t, err)
	assert.Equal(t, auth.RoleUser, view.Role)
	assert.Equal(t, "North Clinic", view.Tenant)
	assert.Equal(t, admin.AccountID, view.UpdatedBy)

	inactive := false
	view, err = svc.Edit(ctx, admin, target.ID, EditInput{IsActive: &inactive})
	require.NoError(t, err)
	assert.False(t, view.IsActive)
	stored, _ := store.GetByID(ctx, target.ID)
	assert.Empty(t, stored.RefreshFingerprint)

	blank := "  "
	_, err = svc.Edit(ctx, admin, target.ID, EditInput{Tenant: &blank})
	assert.ErrorIs(t, err, auth.ErrValidation)

	_, err = svc.Edit(ctx, admin, uuid.NewString(), EditInput{})
	assert.ErrorIs(t, err, auth.ErrAccountNotFound)
}

func TestEditPrivilegedRules(t *testing.T) {
	svc, store := newTestService(t)
	admin := identityOf(store.seed(auth.RoleAdmin))
	sys := identityOf(store.seed(auth.RoleSystemAdmin))
	otherSys := store.seed(auth.RoleSystemAdmin)
	target := store.seed(auth.RoleUser)
	ctx := context.Background()

	promote := "admin"
	_, err := svc.Edit(ctx, admin, target.ID, EditInput{Role: &promote})
	assert.ErrorIs(t, err, auth.ErrForbidden)

	tenant := "Elsewhere"
	_, err = svc.Edit(ctx, admin, otherSys.ID, EditInput{Tenant: &tenant})
	assert.ErrorIs(t, err, auth.ErrForbidden)

	view, err := svc.Edit(ctx, sys, target.ID, EditInput{Role: &promote})
	require.NoError(t, err)
	assert.Equal(t, auth.RoleAdmin, view.Role)
}

func TestDeleteAccount(t *testing.T) {
	svc, store := newTestService(t)
	adminAccount := store.seed(auth.RoleAdmin)
	admin := identityOf(adminAccount)
	sysAccount := store.seed(auth.RoleSystemAdmin)
	target := store.seed(auth.RoleUser)
	ctx := context.Background()

	err := svc.Delete(ctx, admin, adminAccount.ID)
	assert.ErrorIs(t, err, auth.ErrForbidden)
	_, message := auth.StatusFor(err)
	assert.Equal(t, "You cannot delete your own account", message)

	assert.ErrorIs(t, svc.Delete(ctx, admin, sysAccount.ID), auth.ErrForbidden)

	require.NoError(t, svc.Delete(ctx, admin, target.ID))
	_, err = store.GetByID(ctx, target.ID)
	assert.ErrorIs(t, err, auth.ErrAccountNotFound)

	assert.ErrorIs(t, svc.Delete(ctx, admin, target.ID), auth.ErrAccountNotFound)

	require.NoError(t, svc.Delete(ctx, identityOf(sysAccount), adminAccount.ID))
}

func TestListAndGetAreSanitized(t *testing.T) {
	svc, store := newTestService(t)
	a := store.seed(auth.RoleUser)
	store.seed(auth.RoleGuest)

	views, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, views, 2)

	view, err := svc.Get(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.Email, view.Email)
}
