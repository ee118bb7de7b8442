package auth

import (
	"context"
	"time"
)

// Store is the credential store. Conditional writes report whether they
// applied; a false result means the precondition no longer held.
type Store interface {
	GetByID(ctx context.Context, id string) (Account, error)
	GetByEmail(ctx context.Context, email string) (Account, error)
	GetByResetFingerprint(ctx context.Context, fingerprint string, now time.Time) (Account, error)

	RecordLogin(ctx context.Context, id, refreshFingerprint string, at time.Time) error
	SwapRefreshFingerprint(ctx context.Context, id, expected, next string) (bool, error)
	ClearRefreshFingerprint(ctx context.Context, id string) error

	UpdatePasswordHash(ctx context.Context, id, hash, updatedBy string) error
	SetResetToken(ctx context.Context, id, fingerprint string, expiresAt time.Time) error
	ConsumeResetToken(ctx context.Context, id, fingerprint, newHash string, now time.Time) (bool, error)
	ClearExpiredResetTokens(ctx context.Context, now time.Time, batchSize int) (int64, error)

	Create(ctx context.Context, account Account) (Account, error)
	List(ctx context.Context) ([]Account, error)
	Update(ctx context.Context, id string, changes AccountChanges) (Account, error)
	Delete(ctx context.Context, id string) error
}

// AccountChanges holds the administrative fields that may be edited. Nil
// fields are left untouched.
type AccountChanges struct {
	Role      *Role
	Tenant    *string
	IsActive  *bool
	UpdatedBy string
}
