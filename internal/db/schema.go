package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// usersSchema is idempotent; the email constraint is the uniqueness backstop
// behind the pipeline's in-transaction pre-check.
const usersSchema = `
CREATE TABLE IF NOT EXISTS users (
	id            UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	first_name    VARCHAR(100) NOT NULL,
	last_name     VARCHAR(100) NOT NULL,
	full_name     VARCHAR(201) NOT NULL,
	email         VARCHAR(255) NOT NULL,
	password_hash VARCHAR(255) NOT NULL,
	phone         VARCHAR(20),
	birth_date    DATE,
	age           INT NOT NULL DEFAULT 0,
	is_active     BOOLEAN NOT NULL DEFAULT true,
	role          VARCHAR(20) NOT NULL DEFAULT 'user' CHECK (role IN ('user', 'admin', 'moderator')),
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CONSTRAINT users_email_key UNIQUE (email)
);

CREATE INDEX IF NOT EXISTS users_active_created_idx ON users (created_at DESC, id DESC) WHERE is_active;
`

func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, usersSchema)
	return err
}
