package auth

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

const accountColumns = `
	id, email, password_hash, tenant, role, is_active,
	refresh_fingerprint, reset_token_fingerprint, reset_token_expires_at,
	last_login_at, created_by, updated_by, created_at, updated_at`

// Repository is the PostgreSQL credential store. Every call runs under its
// own timeout so a stalled database surfaces as ErrStoreUnavailable.
type Repository struct {
	db      *sql.DB
	timeout time.Duration
}

func NewRepository(db *sql.DB, timeout time.Duration) *Repository {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Repository{db: db, timeout: timeout}
}

func (r *Repository) Ping(ctx context.Context) error {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	if err := r.db.PingContext(ctx); err != nil {
		return classify("ping database", err)
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Account{}, ErrAccountNotFound
	}
	return r.queryOne(ctx, "query account by id", `SELECT`+accountColumns+` FROM accounts WHERE id = $1`, id)
}

func (r *Repository) GetByEmail(ctx context.Context, email string) (Account, error) {
	return r.queryOne(ctx, "query account by email", `SELECT`+accountColumns+` FROM accounts WHERE email = $1`, email)
}

func (r *Repository) GetByResetFingerprint(ctx context.Context, fingerprint string, now time.Time) (Account, error) {
	return r.queryOne(ctx, "query account by reset token", `SELECT`+accountColumns+`
		FROM accounts
		WHERE reset_token_fingerprint = $1 AND reset_token_expires_at > $2
	`, fingerprint, now.UTC())
}

func (r *Repository) RecordLogin(ctx context.Context, id, refreshFingerprint string, at time.Time) error {
	return r.execOne(ctx, "record login", `
		UPDATE accounts
		SET refresh_fingerprint = $2, last_login_at = $3, updated_at = $3
		WHERE id = $1
	`, id, refreshFingerprint, at.UTC())
}

func (r *Repository) SwapRefreshFingerprint(ctx context.Context, id, expected, next string) (bool, error) {
	if expected == "" {
		return false, nil
	}
	return r.execConditional(ctx, "swap refresh fingerprint", `
		UPDATE accounts
		SET refresh_fingerprint = $3, updated_at = NOW()
		WHERE id = $1 AND refresh_fingerprint = $2 AND is_active
	`, id, expected, next)
}

func (r *Repository) ClearRefreshFingerprint(ctx context.Context, id string) error {
	return r.execOne(ctx, "clear refresh fingerprint", `
		UPDATE accounts
		SET refresh_fingerprint = NULL, updated_at = NOW()
		WHERE id = $1
	`, id)
}

func (r *Repository) UpdatePasswordHash(ctx context.Context, id, hash, updatedBy string) error {
	return r.execOne(ctx, "update password hash", `
		UPDATE accounts
		SET password_hash = $2, refresh_fingerprint = NULL, updated_by = $3, updated_at = NOW()
		WHERE id = $1
	`, id, hash, nullableUUID(updatedBy))
}

func (r *Repository) SetResetToken(ctx context.Context, id, fingerprint string, expiresAt time.Time) error {
	return r.execOne(ctx, "set reset token", `
		UPDATE accounts
		SET reset_token_fingerprint = $2, reset_token_expires_at = $3, updated_at = NOW()
		WHERE id = $1
	`, id, fingerprint, expiresAt.UTC())
}

func (r *Repository) ConsumeResetToken(ctx context.Context, id, fingerprint, newHash string, now time.Time) (bool, error) {
	return r.execConditional(ctx, "consume reset token", `
		UPDATE accounts
		SET password_hash = $3,
			reset_token_fingerprint = NULL,
			reset_token_expires_at = NULL,
			refresh_fingerprint = NULL,
			updated_at = $4
		WHERE id = $1 AND reset_token_fingerprint = $2 AND reset_token_expires_at > $4
	`, id, fingerprint, newHash, now.UTC())
}

func (r *Repository) ClearExpiredResetTokens(ctx context.Context, now time.Time, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = 500
	}

	ctx, cancel := r.bound(ctx)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		WITH stale AS (
			SELECT id
			FROM accounts
			WHERE reset_token_expires_at IS NOT NULL AND reset_token_expires_at <= $1
			ORDER BY reset_token_expires_at ASC
			LIMIT $2
		)
		UPDATE accounts a
		SET reset_token_fingerprint = NULL, reset_token_expires_at = NULL
		FROM stale
		WHERE a.id = stale.id
	`, now.UTC(), batchSize)
	if err != nil {
		return 0, classify("clear expired reset tokens", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("expired reset tokens rows affected: %w", err)
	}
	return affected, nil
}

func (r *Repository) Create(ctx context.Context, account Account) (Account, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Account{}, fmt.Errorf("generate account id: %w", err)
	}

	ctx, cancel := r.bound(ctx)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `
		INSERT INTO accounts (id, email, password_hash, tenant, role, is_active, created_by, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING`+accountColumns,
		id.String(), account.Email, account.PasswordHash, account.Tenant, string(account.Role),
		account.IsActive, nullableUUID(account.CreatedBy))

	created, err := scanAccount(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return Account{}, ErrEmailTaken
		}
		return Account{}, classify("insert account", err)
	}
	return created, nil
}

func (r *Repository) List(ctx context.Context) ([]Account, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `SELECT`+accountColumns+` FROM accounts ORDER BY created_at ASC`)
	if err != nil {
		return nil, classify("list accounts", err)
	}
	defer rows.Close()

	accounts := make([]Account, 0)
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, classify("scan account", err)
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterate accounts", err)
	}
	return accounts, nil
}

func (r *Repository) Update(ctx context.Context, id string, changes AccountChanges) (Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Account{}, ErrAccountNotFound
	}

	sets := []string{"updated_at = NOW()", "updated_by = $2"}
	args := []any{id, nullableUUID(changes.UpdatedBy)}
	if changes.Role != nil {
		args = append(args, string(*changes.Role))
		sets = append(sets, fmt.Sprintf("role = $%d", len(args)))
	}
	if changes.Tenant != nil {
		args = append(args, *changes.Tenant)
		sets = append(sets, fmt.Sprintf("tenant = $%d", len(args)))
	}
	if changes.IsActive != nil {
		args = append(args, *changes.IsActive)
		sets = append(sets, fmt.Sprintf("is_active = $%d", len(args)))
		if !*changes.IsActive {
			sets = append(sets, "refresh_fingerprint = NULL")
		}
	}

	return r.queryOne(ctx, "update account",
		`UPDATE accounts SET `+strings.Join(sets, ", ")+` WHERE id = $1 RETURNING`+accountColumns,
		args...)
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrAccountNotFound
	}
	return r.execOne(ctx, "delete account", `DELETE FROM accounts WHERE id = $1`, id)
}

func (r *Repository) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

func (r *Repository) queryOne(ctx context.Context, op, query string, args ...any) (Account, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	account, err := scanAccount(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, classify(op, err)
	}
	return account, nil
}

// execOne runs an unconditional write that must hit exactly one row.
func (r *Repository) execOne(ctx context.Context, op, query string, args ...any) error {
	applied, err := r.execConditional(ctx, op, query, args...)
	if err != nil {
		return err
	}
	if !applied {
		return ErrAccountNotFound
	}
	return nil
}

func (r *Repository) execConditional(ctx context.Context, op, query string, args ...any) (bool, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, classify(op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s rows affected: %w", op, err)
	}
	return affected == 1, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (Account, error) {
	var (
		account                 Account
		role                    string
		refreshFP, resetFP      sql.NullString
		resetExpires, lastLogin sql.NullTime
		createdBy, updatedBy    sql.NullString
	)

	err := row.Scan(
		&account.ID, &account.Email, &account.PasswordHash, &account.Tenant, &role, &account.IsActive,
		&refreshFP, &resetFP, &resetExpires,
		&lastLogin, &createdBy, &updatedBy, &account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		return Account{}, err
	}

	account.Role = Role(role)
	account.RefreshFingerprint = refreshFP.String
	account.ResetFingerprint = resetFP.String
	account.CreatedBy = createdBy.String
	account.UpdatedBy = updatedBy.String
	if resetExpires.Valid {
		value := resetExpires.Time.UTC()
		account.ResetExpiresAt = &value
	}
	if lastLogin.Valid {
		value := lastLogin.Time.UTC()
		account.LastLoginAt = &value
	}
	account.CreatedAt = account.CreatedAt.UTC()
	account.UpdatedAt = account.UpdatedAt.UTC()

	return account, nil
}

func nullableUUID(id string) any {
	if _, err := uuid.Parse(id); err != nil {
		return nil
	}
	return id
}

// classify wraps err, tagging connectivity failures and timeouts as
// ErrStoreUnavailable.
func classify(op string, err error) error {
	if isUnavailable(err) {
		return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isUnavailable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	if pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return true
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
