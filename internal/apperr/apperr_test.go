package apperr

import (
	"context"
	"errors"
	"testing"
)

func TestIsRetryableStatus(t *testing.T) {
	retryable := []int{429, 500, 502, 503, 504}
	for _, s := range retryable {
		if !IsRetryableStatus(s) {
			t.Errorf("status %d should be retryable", s)
		}
	}
	notRetryable := []int{200, 400, 401, 403, 404}
	for _, s := range notRetryable {
		if IsRetryableStatus(s) {
			t.Errorf("status %d should not be retryable", s)
		}
	}
}

func TestIsRetryableTransportError(t *testing.T) {
	err := Network(0, 0, errors.New("connection refused"))
	if !IsRetryable(err) {
		t.Fatal("transport-level error with no status should be retryable")
	}
}

func TestIsProviderBillingError(t *testing.T) {
	billing := Provider(ProviderBilling, 402, errors.New("insufficient credit"))
	if !IsProviderBillingError(billing) {
		t.Fatal("expected billing error to be classified distinctly")
	}
	tool := New(KindTool, "exec", errors.New("boom"))
	if IsProviderBillingError(tool) {
		t.Fatal("tool error must not be classified as provider billing")
	}
}

func TestRetrySucceedsAfterRetryableFailures(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), BackoffPolicy{InitialMs: 1, MaxMs: 2, Factor: 1, Jitter: 0}, func() error {
		attempts++
		if attempts < 3 {
			return Network(503, 0, errors.New("unavailable"))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetryNeverRetriesNonRetryableError(t *testing.T) {
	attempts := 0
	sentinel := New(KindSerialization, "parse", errors.New("bad json"))
	err := Retry(context.Background(), DefaultBackoffPolicy(), func() error {
		attempts++
		return sentinel
	})
	if attempts != 1 {
		t.Fatalf("expected exactly 1 attempt for non-retryable error, got %d", attempts)
	}
	if !errors.Is(err, sentinel) && err != sentinel {
		t.Fatalf("expected sentinel error returned, got %v", err)
	}
}
