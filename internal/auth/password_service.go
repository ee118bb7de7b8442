package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ChangePassword sets a new password for accountID on behalf of actor.
// Account managers may target other accounts without the old password,
// subject to Authorize; everyone else may only change their own password
// and must prove the old one.
func (s *Service) ChangePassword(ctx context.Context, actor Identity, accountID, oldPassword, newPassword string) error {
	if actor.AccountID == "" {
		return ErrAuthenticationRequired
	}
	accountID = strings.TrimSpace(accountID)

	var target Account
	var err error
	if actor.Role.Can(CapManageAccounts) {
		target, err = s.store.GetByID(ctx, accountID)
		if err != nil {
			return err
		}
		if err := Authorize(actor.Role, ActionChangePassword, target.Role); err != nil {
			return err
		}
	} else {
		if !actor.Role.Can(CapChangeOwnPassword) || accountID != actor.AccountID {
			return &ForbiddenError{Message: "You can only change your own password"}
		}
		target, err = s.store.GetByID(ctx, actor.AccountID)
		if err != nil {
			return err
		}
		if !s.hasher.Matches(target.PasswordHash, oldPassword) {
			return ErrInvalidOldPassword
		}
	}

	// bcrypt ignores bytes past 72, so length goes first.
	if err := validatePasswordLength(newPassword); err != nil {
		return err
	}
	if s.hasher.Matches(target.PasswordHash, newPassword) {
		return ErrPasswordReused
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.store.UpdatePasswordHash(ctx, target.ID, hash, actor.AccountID); err != nil {
		return err
	}

	s.logger.Info("password_changed", map[string]any{
		"account_id": target.ID,
		"actor_id":   actor.AccountID,
	})
	return nil
}

// RequestPasswordReset stores the fingerprint of a fresh reset token on the
// account and sends the raw token to its email.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	email = NormalizeEmail(email)
	if email == "" {
		return NewValidationError("Email is required")
	}

	account, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) && s.uniformReset {
			return nil
		}
		return err
	}

	raw, err := newResetToken()
	if err != nil {
		return err
	}
	expiresAt := s.now().Add(s.resetTTL)
	if err := s.store.SetResetToken(ctx, account.ID, Fingerprint(raw), expiresAt); err != nil {
		return err
	}

	tenant := account.Tenant
	if tenant == "" {
		tenant = "Hospital"
	}
	notice := PasswordResetNotice{
		To:     account.Email,
		Tenant: tenant,
		Link:   s.resetLinkBase + "/reset-password?token=" + url.QueryEscape(raw),
	}
	if err := s.notifier.SendPasswordReset(ctx, notice); err != nil {
		s.logger.Error("password_reset_notification_failed", map[string]any{
			"account_id": account.ID,
			"error":      err.Error(),
		})
		return fmt.Errorf("%w: %w", ErrNotificationFailed, err)
	}

	s.logger.Info("password_reset_requested", map[string]any{
		"account_id": account.ID,
		"expires_at": expiresAt,
	})
	return nil
}

// ResetPassword redeems a reset token. The token is consumed by the same
// conditional write that stores the new hash, so it works at most once.
func (s *Service) ResetPassword(ctx context.Context, rawToken, newPassword string) error {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return ErrInvalidOrExpiredToken
	}

	now := s.now()
	fingerprint := Fingerprint(rawToken)
	account, err := s.store.GetByResetFingerprint(ctx, fingerprint, now)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return ErrInvalidOrExpiredToken
		}
		return err
	}
	if !FingerprintMatches(account.ResetFingerprint, rawToken) {
		return ErrInvalidOrExpiredToken
	}

	if err := ValidateNewPassword(newPassword); err != nil {
		return err
	}
	if s.hasher.Matches(account.PasswordHash, newPassword) {
		return ErrPasswordReused
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	consumed, err := s.store.ConsumeResetToken(ctx, account.ID, fingerprint, hash, now)
	if err != nil {
		return err
	}
	if !consumed {
		return ErrInvalidOrExpiredToken
	}

	s.logger.Info("password_reset_completed", map[string]any{"account_id": account.ID})
	return nil
}
