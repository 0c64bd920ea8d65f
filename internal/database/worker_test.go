package database

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

type busyError struct{ code int }

func (e busyError) Error() string { return fmt.Sprintf("sqlite error %d", e.code) }

func (e busyError) Code() int { return e.code }

func TestIsSQLiteBusy(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "busy code", err: busyError{code: 5}, want: true},
		{name: "extended busy code", err: fmt.Errorf("begin: %w", busyError{code: 517}), want: true},
		{name: "locked message", err: errors.New("database is locked"), want: true},
		{name: "constraint", err: busyError{code: 19}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isSQLiteBusy(tt.err); got != tt.want {
				t.Fatalf("isSQLiteBusy(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestRetryOnBusy(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name     string
		failures int
		failWith error
		wantErr  error
		wantRuns int
	}{
		{name: "succeeds after busy", failures: 2, failWith: busyError{code: 5}, wantRuns: 3},
		{name: "gives up when always busy", failures: busyRetryAttempts, failWith: busyError{code: 5}, wantErr: busyError{code: 5}, wantRuns: busyRetryAttempts},
		{name: "other errors are not retried", failures: 1, failWith: boom, wantErr: boom, wantRuns: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs := 0
			err := retryOnBusy(context.Background(), func() error {
				runs++
				if runs <= tt.failures {
					return tt.failWith
				}
				return nil
			})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if runs != tt.wantRuns {
				t.Fatalf("runs = %d, want %d", runs, tt.wantRuns)
			}
		})
	}
}

func TestRetryOnBusyStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	runs := 0
	err := retryOnBusy(ctx, func() error {
		runs++
		return busyError{code: 5}
	})
	if !errors.Is(err, context.Canceled) || runs != 1 {
		t.Fatalf("err = %v after %d runs", err, runs)
	}
}
