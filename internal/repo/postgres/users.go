package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/geocoder89/userhub/internal/domain/user"
	"github.com/geocoder89/userhub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var errForeignTx = errors.New("postgres: transaction was not started by this repository")

const userColumns = `id, first_name, last_name, full_name, email, password_hash, phone, birth_date, age, is_active, role, created_at, updated_at`

type UsersRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{
		pool: pool,
		prom: prom,
	}
}

var _ user.Store = (*UsersRepo)(nil)

func (r *UsersRepo) observe(op string, fn func() error) error {
	return r.prom.ObserveDB(op, fn)
}

func (r *UsersRepo) BeginTx(ctx context.Context) (user.Tx, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	return tx, nil
}

func asPgx(tx user.Tx) (pgx.Tx, error) {
	pgTx, ok := tx.(pgx.Tx)
	if !ok {
		return nil, errForeignTx
	}
	return pgTx, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner, extra ...any) (user.User, error) {
	var u user.User

	dest := []any{
		&u.ID,
		&u.FirstName,
		&u.LastName,
		&u.FullName,
		&u.Email,
		&u.PasswordHash,
		&u.Phone,
		&u.BirthDate,
		&u.Age,
		&u.IsActive,
		&u.Role,
		&u.CreatedAt,
		&u.UpdatedAt,
	}

	err := row.Scan(append(dest, extra...)...)

	return u, err
}

func (r *UsersRepo) findOne(q pgx.Row) (user.User, error) {
	u, err := scanUser(q)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, err
	}
	return u, nil
}

func (r *UsersRepo) FindByEmailTx(ctx context.Context, tx user.Tx, email string) (found user.User, err error) {
	pgTx, err := asPgx(tx)
	if err != nil {
		return
	}

	err = r.observe("users.find_by_email_tx", func() error {
		var e error
		found, e = r.findOne(pgTx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
		return e
	})
	return
}

func (r *UsersRepo) FindByIDTx(ctx context.Context, tx user.Tx, id string) (found user.User, err error) {
	pgTx, err := asPgx(tx)
	if err != nil {
		return
	}

	// row lock so concurrent updates of the same user serialize
	err = r.observe("users.find_by_id_tx", func() error {
		var e error
		found, e = r.findOne(pgTx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id))
		return e
	})
	return
}

func (r *UsersRepo) InsertTx(ctx context.Context, tx user.Tx, u user.User) (user.User, error) {
	pgTx, err := asPgx(tx)
	if err != nil {
		return user.User{}, err
	}

	err = r.observe("users.insert", func() error {
		_, e := pgTx.Exec(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, u.ID, u.FirstName, u.LastName, u.FullName, u.Email, u.PasswordHash, u.Phone, u.BirthDate, u.Age, u.IsActive, string(u.Role), u.CreatedAt, u.UpdatedAt)
		return e
	})

	if err != nil {
		return user.User{}, err
	}

	return u, nil
}

func (r *UsersRepo) UpdateTx(ctx context.Context, tx user.Tx, id string, changes user.Changes) (updated user.User, err error) {
	pgTx, err := asPgx(tx)
	if err != nil {
		return
	}

	query, args := buildUpdateQuery(id, changes)

	err = r.observe("users.update", func() error {
		var e error
		updated, e = scanUser(pgTx.QueryRow(ctx, query, args...))
		return e
	})

	if errors.Is(err, pgx.ErrNoRows) {
		err = user.ErrNotFound
	}
	return
}

func (r *UsersRepo) DeactivateTx(ctx context.Context, tx user.Tx, id string, at time.Time) error {
	pgTx, err := asPgx(tx)
	if err != nil {
		return err
	}

	var tag pgconn.CommandTag
	err = r.observe("users.deactivate", func() error {
		var e error
		tag, e = pgTx.Exec(ctx, `UPDATE users SET is_active = false, updated_at = $2 WHERE id = $1`, id, at)
		return e
	})

	if err != nil {
		return err
	}

	// if no rows were updated the user does not exist
	if tag.RowsAffected() == 0 {
		return user.ErrNotFound
	}

	return nil
}

// GetByID returns the row whatever its active flag.
func (r *UsersRepo) GetByID(ctx context.Context, id string) (found user.User, err error) {
	err = r.observe("users.get_by_id", func() error {
		var e error
		found, e = r.findOne(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
		return e
	})
	return
}

func (r *UsersRepo) List(ctx context.Context, filter user.ListUsersFilter) ([]user.User, int, error) {
	query, args := buildListQuery(filter)

	var rows pgx.Rows
	err := r.observe("users.list", func() error {
		var e error
		rows, e = r.pool.Query(ctx, query, args...)
		return e
	})

	if err != nil {
		return nil, 0, err
	}

	defer rows.Close()

	output := make([]user.User, 0, filter.Limit)
	total := 0

	for rows.Next() {
		var t int

		u, err := scanUser(rows, &t)
		if err != nil {
			return nil, 0, err
		}

		total = t
		output = append(output, u)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	// past the last page the window function has no row to report the total on
	if len(output) == 0 && filter.Offset > 0 {
		countQuery, countArgs := buildCountQuery(filter)

		err = r.observe("users.count", func() error {
			return r.pool.QueryRow(ctx, countQuery, countArgs...).Scan(&total)
		})
		if err != nil {
			return nil, 0, err
		}
	}

	return output, total, nil
}

// whereClause always restricts to active users and appends the optional age bounds.
func whereClause(filter user.ListUsersFilter) (string, []any, int) {
	conds := []string{"is_active = true"}
	var args []any

	argsPosition := 1

	if filter.MinAge != nil {
		conds = append(conds, fmt.Sprintf("age >= $%d", argsPosition))
		args = append(args, *filter.MinAge)
		argsPosition++
	}

	if filter.MaxAge != nil {
		conds = append(conds, fmt.Sprintf("age <= $%d", argsPosition))
		args = append(args, *filter.MaxAge)
		argsPosition++
	}

	return " WHERE " + strings.Join(conds, " AND "), args, argsPosition
}

func buildListQuery(filter user.ListUsersFilter) (string, []any) {
	where, args, argsPosition := whereClause(filter)

	query := `SELECT ` + userColumns + `, COUNT(*) OVER() AS total FROM users` + where

	// newest first, id breaks ties so pages stay stable
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", argsPosition, argsPosition+1)

	args = append(args, filter.Limit, filter.Offset)

	return query, args
}

func buildCountQuery(filter user.ListUsersFilter) (string, []any) {
	where, args, _ := whereClause(filter)
	return `SELECT COUNT(*) FROM users` + where, args
}

func buildUpdateQuery(id string, c user.Changes) (string, []any) {
	sets := make([]string, 0, 10)
	args := []any{id}

	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if c.FirstName != nil {
		add("first_name", *c.FirstName)
	}
	if c.LastName != nil {
		add("last_name", *c.LastName)
	}
	if c.FullName != nil {
		add("full_name", *c.FullName)
	}
	if c.Email != nil {
		add("email", *c.Email)
	}
	if c.PasswordHash != nil {
		add("password_hash", *c.PasswordHash)
	}
	if c.Phone != nil {
		add("phone", *c.Phone)
	}
	if c.BirthDate != nil {
		add("birth_date", *c.BirthDate)
	}
	if c.Age != nil {
		add("age", *c.Age)
	}
	if c.Role != nil {
		add("role", string(*c.Role))
	}

	updatedAt := c.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	add("updated_at", updatedAt)

	return `UPDATE users SET ` + strings.Join(sets, ", ") + ` WHERE id = $1 RETURNING ` + userColumns, args
}
