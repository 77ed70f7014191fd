package postgres

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/geocoder89/userhub/internal/domain/user"
)

func intPtr(v int) *int { return &v }

func TestBuildListQuery(t *testing.T) {
	tests := []struct {
		name      string
		filter    user.ListUsersFilter
		wantWhere string
		wantTail  string
		wantArgs  []any
	}{
		{
			name:      "active_only",
			filter:    user.ListUsersFilter{Limit: 10, Offset: 0},
			wantWhere: "WHERE is_active = true ORDER BY",
			wantTail:  "ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2",
			wantArgs:  []any{10, 0},
		},
		{
			name:      "min_age",
			filter:    user.ListUsersFilter{MinAge: intPtr(18), Limit: 10, Offset: 10},
			wantWhere: "WHERE is_active = true AND age >= $1 ORDER BY",
			wantTail:  "LIMIT $2 OFFSET $3",
			wantArgs:  []any{18, 10, 10},
		},
		{
			name:      "age_range",
			filter:    user.ListUsersFilter{MinAge: intPtr(18), MaxAge: intPtr(30), Limit: 100, Offset: 200},
			wantWhere: "WHERE is_active = true AND age >= $1 AND age <= $2 ORDER BY",
			wantTail:  "LIMIT $3 OFFSET $4",
			wantArgs:  []any{18, 30, 100, 200},
		},
		{
			name:      "inverted_range_is_not_rejected",
			filter:    user.ListUsersFilter{MinAge: intPtr(40), MaxAge: intPtr(20), Limit: 10},
			wantWhere: "AND age >= $1 AND age <= $2",
			wantTail:  "LIMIT $3 OFFSET $4",
			wantArgs:  []any{40, 20, 10, 0},
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			query, args := buildListQuery(tt.filter)

			if !strings.Contains(query, "COUNT(*) OVER()") {
				t.Fatalf("expected window total in %q", query)
			}
			if !strings.Contains(query, tt.wantWhere) {
				t.Fatalf("expected %q in %q", tt.wantWhere, query)
			}
			if !strings.HasSuffix(query, tt.wantTail) {
				t.Fatalf("expected %q to end with %q", query, tt.wantTail)
			}
			if !reflect.DeepEqual(args, tt.wantArgs) {
				t.Fatalf("args: got %v want %v", args, tt.wantArgs)
			}
		})
	}
}

func TestBuildCountQuery(t *testing.T) {
	query, args := buildCountQuery(user.ListUsersFilter{MaxAge: intPtr(65), Limit: 10, Offset: 50})

	if query != "SELECT COUNT(*) FROM users WHERE is_active = true AND age <= $1" {
		t.Fatalf("unexpected count query %q", query)
	}
	if !reflect.DeepEqual(args, []any{65}) {
		t.Fatalf("unexpected args %v", args)
	}
}

func TestBuildUpdateQuery_OnlyPresentColumns(t *testing.T) {
	first := "Ana"
	full := "Ana Torres"
	age := 30
	at := time.Date(2024, 9, 4, 0, 0, 0, 0, time.UTC)

	query, args := buildUpdateQuery("id-1", user.Changes{
		FirstName: &first,
		FullName:  &full,
		Age:       &age,
		UpdatedAt: at,
	})

	wantSet := "SET first_name = $2, full_name = $3, age = $4, updated_at = $5 WHERE id = $1"
	if !strings.Contains(query, wantSet) {
		t.Fatalf("expected %q in %q", wantSet, query)
	}
	if strings.Contains(query, "email =") || strings.Contains(query, "password_hash =") {
		t.Fatalf("untouched columns must not be written: %q", query)
	}
	if !reflect.DeepEqual(args, []any{"id-1", "Ana", "Ana Torres", 30, at}) {
		t.Fatalf("unexpected args %v", args)
	}
}
