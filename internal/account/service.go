package account

import (
	"context"
	"regexp"
	"strings"
	"time"

	"hris-portal/internal/auth"
	"hris-portal/internal/observability"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,6}$`)

const passwordFormatMessage = "Password must be at least 8 characters long and contain at least one uppercase letter, one lowercase letter, and one number"

// Store is the part of the credential store used for administration.
type Store interface {
	GetByID(ctx context.Context, id string) (auth.Account, error)
	Create(ctx context.Context, account auth.Account) (auth.Account, error)
	List(ctx context.Context) ([]auth.Account, error)
	Update(ctx context.Context, id string, changes auth.AccountChanges) (auth.Account, error)
	Delete(ctx context.Context, id string) error
}

// View is an account without its hash or token fingerprints.
type View struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	Tenant      string     `json:"tenant"`
	Role        auth.Role  `json:"role"`
	IsActive    bool       `json:"isActive"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
	CreatedBy   string     `json:"createdBy,omitempty"`
	UpdatedBy   string     `json:"updatedBy,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func NewView(a auth.Account) View {
	return View{
		ID:          a.ID,
		Email:       a.Email,
		Tenant:      a.Tenant,
		Role:        a.Role,
		IsActive:    a.IsActive,
		LastLoginAt: a.LastLoginAt,
		CreatedBy:   a.CreatedBy,
		UpdatedBy:   a.UpdatedBy,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

type CreateInput struct {
	Email    string
	Password string
	Tenant   string
	Role     string
}

// EditInput lists the editable fields. Nil means unchanged.
type EditInput struct {
	Role     *string
	Tenant   *string
	IsActive *bool
}

type Service struct {
	store  Store
	hasher *auth.PasswordHasher
	logger *observability.Logger
}

func NewService(store Store, hasher *auth.PasswordHasher, logger *observability.Logger) *Service {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Service{store: store, hasher: hasher, logger: logger}
}

func (s *Service) Create(ctx context.Context, actor auth.Identity, in CreateInput) (View, error) {
	if !actor.Role.Can(auth.CapManageAccounts) {
		return View{}, &auth.ForbiddenError{Message: "Only admin and system admin can create users"}
	}

	email := auth.NormalizeEmail(in.Email)
	tenant := strings.TrimSpace(in.Tenant)
	if email == "" || in.Password == "" || tenant == "" {
		return View{}, auth.NewValidationError("Email, password and tenant are required")
	}
	if !emailPattern.MatchString(email) {
		return View{}, auth.NewValidationError("Invalid email format")
	}
	if failures := auth.CheckPasswordComplexity(in.Password); len(failures) > 0 {
		return View{}, auth.NewValidationError(passwordFormatMessage, failures...)
	}

	role, err := auth.ParseRole(in.Role)
	if err != nil {
		return View{}, err
	}
	if err := auth.Authorize(actor.Role, auth.ActionCreateAccount, role); err != nil {
		return View{}, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return View{}, err
	}

	created, err := s.store.Create(ctx, auth.Account{
		Email:        email,
		PasswordHash: hash,
		Tenant:       tenant,
		Role:         role,
		IsActive:     true,
		CreatedBy:    actor.AccountID,
	})
	if err != nil {
		return View{}, err
	}

	s.logger.Info("account_created", map[string]any{
		"account_id": created.ID,
		"role":       string(created.Role),
		"actor_id":   actor.AccountID,
	})
	return NewView(created), nil
}

func (s *Service) Edit(ctx context.Context, actor auth.Identity, id string, in EditInput) (View, error) {
	existing, err := s.store.GetByID(ctx, id)
	if err != nil {
		return View{}, err
	}
	if err := auth.Authorize(actor.Role, auth.ActionModifyAccount, existing.Role); err != nil {
		return View{}, err
	}

	changes := auth.AccountChanges{IsActive: in.IsActive, UpdatedBy: actor.AccountID}
	if in.Role != nil {
		role, err := auth.ParseRole(*in.Role)
		if err != nil {
			return View{}, err
		}
		if err := auth.Authorize(actor.Role, auth.ActionAssignRole, role); err != nil {
			return View{}, err
		}
		changes.Role = &role
	}
	if in.Tenant != nil {
		tenant := strings.TrimSpace(*in.Tenant)
		if tenant == "" {
			return View{}, auth.NewValidationError("Tenant cannot be empty")
		}
		changes.Tenant = &tenant
	}

	updated, err := s.store.Update(ctx, id, changes)
	if err != nil {
		return View{}, err
	}

	s.logger.Info("account_updated", map[string]any{
		"account_id": updated.ID,
		"actor_id":   actor.AccountID,
	})
	return NewView(updated), nil
}

func (s *Service) List(ctx context.Context) ([]View, error) {
	accounts, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]View, len(accounts))
	for i, a := range accounts {
		views[i] = NewView(a)
	}
	return views, nil
}

func (s *Service) Get(ctx context.Context, id string) (View, error) {
	a, err := s.store.GetByID(ctx, id)
	if err != nil {
		return View{}, err
	}
	return NewView(a), nil
}

// Delete removes the account permanently. Actors cannot delete themselves.
func (s *Service) Delete(ctx context.Context, actor auth.Identity, id string) error {
	target, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if target.ID == actor.AccountID {
		return &auth.ForbiddenError{Message: "You cannot delete your own account"}
	}
	if err := auth.Authorize(actor.Role, auth.ActionDeleteAccount, target.Role); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, target.ID); err != nil {
		return err
	}

	s.logger.Info("account_deleted", map[string]any{
		"account_id": target.ID,
		"actor_id":   actor.AccountID,
	})
	return nil
}
