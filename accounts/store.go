package accounts

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when no account matches the lookup key.
	ErrNotFound = errors.New("account not found")
	// ErrDuplicateEmail is returned by Create when the email is taken.
	ErrDuplicateEmail = errors.New("account email already registered")
	// ErrConflict is returned when an atomic update lost every retry.
	ErrConflict = errors.New("account update conflict")
	// ErrUnavailable wraps backend failures.
	ErrUnavailable = errors.New("account store unavailable")
)

// UpdateFunc mutates an account in place. Returning an error aborts the
// update and nothing is persisted.
type UpdateFunc func(a *Account) error

// Store persists accounts. Implementations must make Update an atomic
// read-modify-write on a single record.
type Store interface {
	Create(ctx context.Context, a *Account) error
	FindByEmail(ctx context.Context, email string) (*Account, error)
	FindByID(ctx context.Context, id string) (*Account, error)
	// Update loads the record, applies fn and persists the result as one
	// operation. The returned account is the persisted state. When fn
	// returns an error Update returns that error unchanged.
	Update(ctx context.Context, id string, fn UpdateFunc) (*Account, error)
	Ping(ctx context.Context) error
}
