package accounts

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/MrEthical07/staysafe/internal/dbx"
)

const pgErrUniqueViolation = "23505"

const accountColumns = `id, email, full_name, phone, role,
	password_hash, password_history, last_password_change, password_expired,
	login_attempts, lock_until, otp_hash, otp_expiry, mfa_enabled,
	refresh_token_hash, created_at, updated_at`

// PostgresStore persists accounts in the accounts table created by
// internal/migrations. Update locks the row with SELECT ... FOR UPDATE.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an open database handle (pgx stdlib driver).
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, a *Account) error {
	rec := a.Clone()
	rec.Email = NormalizeEmail(rec.Email)
	history, err := json.Marshal(nonNilHistory(rec.PasswordHistory))
	if err != nil {
		return fmt.Errorf("encode password history: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		rec.ID, rec.Email, rec.FullName, rec.Phone, string(rec.Role),
		rec.PasswordHash, history, nullTime(rec.LastPasswordChange), rec.PasswordExpired,
		rec.LoginAttempts, nullTime(rec.LockUntil), rec.OTPHash, nullTime(rec.OTPExpiry), rec.MFAEnabled,
		rec.RefreshTokenHash, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgErrUniqueViolation {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*Account, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE email = $1`, NormalizeEmail(email))
	return scanAccount(row)
}

func (s *PostgresStore) FindByID(ctx context.Context, id string) (*Account, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	return scanAccount(row)
}

func (s *PostgresStore) Update(ctx context.Context, id string, fn UpdateFunc) (*Account, error) {
	var updated *Account
	var fnErr error

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		row := tx.QueryRowContext(ctx,
			`SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, id)
		current, err := scanAccount(row)
		if err != nil {
			return err
		}

		working := current.Clone()
		if err := fn(working); err != nil {
			fnErr = err
			return err
		}
		working.ID = current.ID
		working.Email = current.Email
		working.Role = current.Role

		history, err := json.Marshal(nonNilHistory(working.PasswordHistory))
		if err != nil {
			return fmt.Errorf("encode password history: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE accounts SET
				full_name = $2, phone = $3,
				password_hash = $4, password_history = $5, last_password_change = $6, password_expired = $7,
				login_attempts = $8, lock_until = $9, otp_hash = $10, otp_expiry = $11, mfa_enabled = $12,
				refresh_token_hash = $13, updated_at = $14
			WHERE id = $1`,
			working.ID, working.FullName, working.Phone,
			working.PasswordHash, history, nullTime(working.LastPasswordChange), working.PasswordExpired,
			working.LoginAttempts, nullTime(working.LockUntil), working.OTPHash, nullTime(working.OTPExpiry), working.MFAEnabled,
			working.RefreshTokenHash, working.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		updated = working
		return nil
	})
	if err != nil {
		if fnErr != nil {
			return nil, fnErr
		}
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return updated, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*Account, error) {
	var (
		a          Account
		role       string
		history    []byte
		lastChange sql.NullTime
		lockUntil  sql.NullTime
		otpExpiry  sql.NullTime
	)
	err := row.Scan(
		&a.ID, &a.Email, &a.FullName, &a.Phone, &role,
		&a.PasswordHash, &history, &lastChange, &a.PasswordExpired,
		&a.LoginAttempts, &lockUntil, &a.OTPHash, &otpExpiry, &a.MFAEnabled,
		&a.RefreshTokenHash, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	a.Role = Role(role)
	if len(history) > 0 {
		if err := json.Unmarshal(history, &a.PasswordHistory); err != nil {
			return nil, fmt.Errorf("decode password history: %w", err)
		}
	}
	a.LastPasswordChange = timePtr(lastChange)
	a.LockUntil = timePtr(lockUntil)
	a.OTPExpiry = timePtr(otpExpiry)
	return &a, nil
}

func nonNilHistory(h []string) []string {
	if h == nil {
		return []string{}
	}
	return h
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
