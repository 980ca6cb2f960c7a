package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestIsUniqueViolation(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "invitations_code_key"}
	wrapped := fmt.Errorf("insert: %w", pgErr)

	if !IsUniqueViolation(wrapped, "") {
		t.Fatal("expected unique violation")
	}
	if !IsUniqueViolation(wrapped, "invitations_code_key") {
		t.Fatal("expected matching constraint")
	}
	if IsUniqueViolation(wrapped, "memberships_user_circle_key") {
		t.Fatal("constraint mismatch should not match")
	}
	if IsUniqueViolation(&pgconn.PgError{Code: "23503"}, "") {
		t.Fatal("foreign key violation is not a unique violation")
	}
	if !IsUniqueViolation(&pq.Error{Code: "23505", Constraint: "ratings_ride_rater_key"}, "ratings_ride_rater_key") {
		t.Fatal("expected pq unique violation")
	}
	if !IsUniqueViolation(errors.New("UNIQUE constraint failed: invitations.code"), "") {
		t.Fatal("expected sqlite unique violation")
	}
	if IsUniqueViolation(nil, "") {
		t.Fatal("nil is not a violation")
	}
}

func TestIsTransientConflict(t *testing.T) {
	cases := map[string]struct {
		err  error
		want bool
	}{
		"serialization": {err: &pgconn.PgError{Code: "40001"}, want: true},
		"deadlock":      {err: fmt.Errorf("tx: %w", &pgconn.PgError{Code: "40P01"}), want: true},
		"pq lock":       {err: &pq.Error{Code: "55P03"}, want: true},
		"unique":        {err: &pgconn.PgError{Code: "23505"}, want: false},
		"sqlite busy":   {err: errors.New("database is locked"), want: true},
		"wrapped busy":  {err: &chainErr{msg: "join ride", cause: errors.New("database is locked")}, want: true},
		"plain":         {err: errors.New("boom"), want: false},
		"nil":           {err: nil, want: false},
	}
	for name, tc := range cases {
		if got := IsTransientConflict(tc.err); got != tc.want {
			t.Fatalf("%s: expected %v got %v", name, tc.want, got)
		}
	}
}

type chainErr struct {
	msg   string
	cause error
}

func (w *chainErr) Error() string { return w.msg }
func (w *chainErr) Unwrap() error { return w.cause }
