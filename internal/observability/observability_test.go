package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestClassifyDBErr(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&pgconn.PgError{Code: "23505"}, "unique_violation"},
		{&pgconn.PgError{Code: "23502"}, "not_null_violation"},
		{&pgconn.PgError{Code: "XX000"}, "pg_XX000"},
		{errors.New("context deadline exceeded"), "timeout"},
		{errors.New("connection refused"), "connection"},
		{errors.New("weird"), "unknown"},
	}

	for _, tt := range tests {
		if got := classifyDBErr(tt.err); got != tt.want {
			t.Fatalf("classifyDBErr(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestObserveDB_CountsErrorsButNotMissingRows(t *testing.T) {
	p := NewProm(prometheus.NewRegistry())

	_ = p.ObserveDB("users.get_by_id", func() error { return pgx.ErrNoRows })
	_ = p.ObserveDB("users.insert", func() error { return &pgconn.PgError{Code: "23505"} })

	if got := testutil.ToFloat64(p.DbErrorsTotal.WithLabelValues("users.insert", "unique_violation")); got != 1 {
		t.Fatalf("expected one unique violation, got %v", got)
	}
	if got := testutil.CollectAndCount(p.DbErrorsTotal); got != 1 {
		t.Fatalf("missing rows must not be counted as errors, got %d series", got)
	}
}

func TestObserveDB_NilProm(t *testing.T) {
	var p *Prom
	called := false
	if err := p.ObserveDB("op", func() error { called = true; return nil }); err != nil || !called {
		t.Fatalf("nil prom should just run fn")
	}
	p.ObserveWrite("create", nil)
}

func TestLogger_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger("prod", &buf)

	log.DebugContext(context.Background(), "hidden")
	log.InfoContext(context.Background(), "user created", "user_id", "abc")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("expected exactly one JSON record, got %q: %v", buf.String(), err)
	}
	if rec["msg"] != "user created" || rec["user_id"] != "abc" {
		t.Fatalf("unexpected record %v", rec)
	}
}

func TestLogger_MasksCredentials(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger("prod", &buf).With("admin_password", "Secret123")

	log.InfoContext(context.Background(), "seed", slog.Group("req", "password", "Secret123", "email", "a@x.io"))

	if bytes.Contains(buf.Bytes(), []byte("Secret123")) {
		t.Fatalf("credential leaked into log output: %s", buf.String())
	}

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	req, _ := rec["req"].(map[string]any)
	if req["email"] != "a@x.io" || req["password"] != redacted {
		t.Fatalf("unexpected group %v", rec["req"])
	}
}
