package user

import (
	"context"
	"time"
)

// Tx is the transactional scope a Store hands out. pgx.Tx satisfies it.
type Tx interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Store persists users. Lookups return ErrNotFound when no row matches.
type Store interface {
	BeginTx(ctx context.Context) (Tx, error)
	FindByEmailTx(ctx context.Context, tx Tx, email string) (User, error)
	FindByIDTx(ctx context.Context, tx Tx, id string) (User, error)
	InsertTx(ctx context.Context, tx Tx, u User) (User, error)
	UpdateTx(ctx context.Context, tx Tx, id string, changes Changes) (User, error)
	DeactivateTx(ctx context.Context, tx Tx, id string, at time.Time) error

	GetByID(ctx context.Context, id string) (User, error)
	List(ctx context.Context, filter ListUsersFilter) ([]User, int, error)
}
