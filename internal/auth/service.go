package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"hris-portal/internal/observability"
)

const defaultResetTTL = 15 * time.Minute

type Service struct {
	store    Store
	codec    *TokenCodec
	hasher   *PasswordHasher
	notifier Notifier
	logger   *observability.Logger
	now      func() time.Time

	resetTTL      time.Duration
	resetLinkBase string
	uniformReset  bool
}

func NewService(store Store, codec *TokenCodec, hasher *PasswordHasher, notifier Notifier, logger *observability.Logger) *Service {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Service{
		store:    store,
		codec:    codec,
		hasher:   hasher,
		notifier: notifier,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		resetTTL: defaultResetTTL,
	}
}

// WithResetConfig sets the reset-token lifetime, the base URL of the reset
// page, and whether unknown emails get the same answer as known ones.
func (s *Service) WithResetConfig(ttl time.Duration, linkBase string, uniform bool) {
	if ttl > 0 {
		s.resetTTL = ttl
	}
	s.resetLinkBase = strings.TrimRight(linkBase, "/")
	s.uniformReset = uniform
}

func (s *Service) WithClock(now func() time.Time) {
	s.now = now
}

// Login verifies credentials and starts a new session, superseding any
// refresh token issued earlier for the same account.
func (s *Service) Login(ctx context.Context, email, password string) (LoginResult, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		s.hasher.Burn(password)
		return LoginResult{}, ErrInvalidCredentials
	}

	account, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			s.hasher.Burn(password)
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}

	matches := s.hasher.Matches(account.PasswordHash, password)
	if !matches || !account.IsActive {
		return LoginResult{}, ErrInvalidCredentials
	}

	tokens, err := s.codec.IssuePair(account)
	if err != nil {
		return LoginResult{}, err
	}

	if err := s.store.RecordLogin(ctx, account.ID, Fingerprint(tokens.RefreshToken), s.now()); err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}

	return LoginResult{Tokens: tokens, User: account.Profile()}, nil
}

// Refresh exchanges a refresh token for a new pair. The stored fingerprint is
// swapped atomically so a given refresh token can be redeemed at most once.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Tokens, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return Tokens{}, ErrMissingToken
	}

	claims, err := s.codec.Parse(refreshToken, TokenRefresh)
	if err != nil {
		if errors.Is(err, ErrInvalidToken) {
			return Tokens{}, ErrInvalidRefreshToken
		}
		return Tokens{}, err
	}

	account, err := s.store.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return Tokens{}, ErrInvalidRefreshToken
		}
		return Tokens{}, err
	}

	if !account.IsActive || !FingerprintMatches(account.RefreshFingerprint, refreshToken) {
		return Tokens{}, ErrInvalidRefreshToken
	}

	tokens, err := s.codec.IssuePair(account)
	if err != nil {
		return Tokens{}, err
	}

	swapped, err := s.store.SwapRefreshFingerprint(ctx, account.ID, account.RefreshFingerprint, Fingerprint(tokens.RefreshToken))
	if err != nil {
		return Tokens{}, err
	}
	if !swapped {
		return Tokens{}, ErrInvalidRefreshToken
	}

	return tokens, nil
}

// Logout drops whatever refresh token the account currently holds. Access
// tokens stay valid until they expire.
func (s *Service) Logout(ctx context.Context, identity Identity) error {
	if identity.AccountID == "" {
		return ErrAuthenticationRequired
	}
	err := s.store.ClearRefreshFingerprint(ctx, identity.AccountID)
	if err != nil && !errors.Is(err, ErrAccountNotFound) {
		return err
	}
	return nil
}

// BootstrapAdmin makes sure a systemAdmin account exists for email. An
// existing account with that email is left untouched.
func (s *Service) BootstrapAdmin(ctx context.Context, email, password, tenant string) error {
	email = NormalizeEmail(email)
	if email == "" && password == "" {
		return nil
	}
	if email == "" || password == "" {
		return fmt.Errorf("ADMIN_EMAIL and ADMIN_PASSWORD are required together")
	}

	existing, err := s.store.GetByEmail(ctx, email)
	if err == nil {
		if existing.Role != RoleSystemAdmin {
			s.logger.Warn("bootstrap_admin_role_mismatch", map[string]any{
				"account_id": existing.ID,
				"role":       string(existing.Role),
			})
		}
		return nil
	}
	if !errors.Is(err, ErrAccountNotFound) {
		return fmt.Errorf("look up bootstrap admin: %w", err)
	}

	if err := ValidateNewPassword(password); err != nil {
		return fmt.Errorf("bootstrap admin password: %w", err)
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}

	tenant = strings.TrimSpace(tenant)
	if tenant == "" {
		tenant = "System"
	}

	created, err := s.store.Create(ctx, Account{
		Email:        email,
		PasswordHash: hash,
		Tenant:       tenant,
		Role:         RoleSystemAdmin,
		IsActive:     true,
	})
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil
		}
		return fmt.Errorf("create bootstrap admin: %w", err)
	}

	s.logger.Info("bootstrap_admin_created", map[string]any{"account_id": created.ID})
	return nil
}
