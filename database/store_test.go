package database

import (
	"errors"
	"testing"

	"github.com/lib/pq"
)

func TestWithPositionRetryRecovers(t *testing.T) {
	calls := 0
	err := withPositionRetry(func() error {
		calls++
		if calls == 1 {
			return &pq.Error{Code: uniqueViolation}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
}

func TestWithPositionRetryGivesUpAfterSecondCollision(t *testing.T) {
	calls := 0
	err := withPositionRetry(func() error {
		calls++
		return &pq.Error{Code: uniqueViolation}
	})
	if err == nil {
		t.Fatalf("expected the second collision to surface")
	}
	if calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
}

func TestWithPositionRetryPassesOtherErrorsThrough(t *testing.T) {
	calls := 0
	sentinel := errors.New("connection reset")
	err := withPositionRetry(func() error {
		calls++
		return sentinel
	})
	if err != sentinel {
		t.Fatalf("unexpected error %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 attempt, got %d", calls)
	}
}
