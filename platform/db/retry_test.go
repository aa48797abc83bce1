package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"archi_crm_backend/platform/apperr"

	"github.com/jackc/pgx/v5/pgconn"
)

func testRetrier() *Retrier {
	return NewRetrierWithPolicy(3, time.Millisecond, 2*time.Millisecond, nil)
}

func TestRetrierSucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := testRetrier().Do(context.Background(), "insert_contact", func(context.Context) error {
		attempts++
		if attempts < 3 {
			return &pgconn.PgError{Code: "40P01"}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetrierSurfacesUnavailableAfterExhaustion(t *testing.T) {
	attempts := 0
	err := testRetrier().Do(context.Background(), "insert_contact", func(context.Context) error {
		attempts++
		return &pgconn.PgError{Code: "08006"}
	})
	if !apperr.Is(err, apperr.KindUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
	if attempts != 4 {
		t.Fatalf("expected 4 attempts, got %d", attempts)
	}
}

func TestRetrierReturnsPermanentErrorsImmediately(t *testing.T) {
	cases := []error{
		&pgconn.PgError{Code: "23505"},
		apperr.Validation("bad input"),
		errors.New("boom"),
	}
	for _, want := range cases {
		attempts := 0
		err := testRetrier().Do(context.Background(), "op", func(context.Context) error {
			attempts++
			return want
		})
		if !errors.Is(err, want) {
			t.Errorf("expected %v returned as is, got %v", want, err)
		}
		if attempts != 1 {
			t.Errorf("expected one attempt for %v, got %d", want, attempts)
		}
	}
}

func TestIsTransient(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{&pgconn.PgError{Code: "40001"}, true},
		{&pgconn.PgError{Code: "57P01"}, true},
		{&pgconn.PgError{Code: "08001"}, true},
		{&pgconn.PgError{Code: "23503"}, false},
		{apperr.Unavailable("x", errors.New("y")), false},
	}
	for _, tc := range cases {
		if got := IsTransient(tc.err); got != tc.want {
			t.Errorf("IsTransient(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
