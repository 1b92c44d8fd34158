package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/cwrk-planet/realtime-service/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestMapPgError(t *testing.T) {
	other := errors.New("boom")
	tests := []struct {
		name string
		in   error
		want error
	}{
		{"nil", nil, nil},
		{"no rows", pgx.ErrNoRows, domain.ErrNotFound},
		{"wrapped no rows", fmt.Errorf("scan: %w", pgx.ErrNoRows), domain.ErrNotFound},
		{"unique", &pgconn.PgError{Code: "23505", ConstraintName: "meetings_one_live_per_conversation"}, domain.ErrConflict},
		{"fk", &pgconn.PgError{Code: "23503"}, domain.ErrNotFound},
		{"check", &pgconn.PgError{Code: "23514"}, domain.ErrInvalidInput},
		{"passthrough", other, other},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapPgError(tt.in)
			if tt.want == nil {
				if got != nil {
					t.Fatalf("got %v", got)
				}
				return
			}
			if !errors.Is(got, tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMapPgError_KeepsSentinels(t *testing.T) {
	if !errors.Is(mapPgError(domain.ErrMeetingEnded), domain.ErrMeetingEnded) {
		t.Fatal("domain errors must pass through")
	}
}
