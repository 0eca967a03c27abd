package config

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestTransientError_Wrap(t *testing.T) {
	original := errors.New("dial tcp: connection refused")
	wrapped := NewTransientError(original)

	if wrapped.Error() != original.Error() {
		t.Errorf("expected %q, got %q", original.Error(), wrapped.Error())
	}
	if errors.Unwrap(wrapped) != original {
		t.Errorf("expected original error from Unwrap")
	}
}

func TestTransientError_SentinelSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("rpc name(): %w", NewTransientError(ErrProviderUnavailable))

	if !IsTransient(err) {
		t.Error("expected IsTransient() = true for wrapped transient error")
	}
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Error("expected errors.Is to find ErrProviderUnavailable through TransientError")
	}
}

func TestTransientError_WithRetryAfter(t *testing.T) {
	err := NewTransientErrorWithRetry(ErrProviderRateLimit, 5*time.Second)

	if got := GetRetryAfter(fmt.Errorf("explorer: %w", err)); got != 5*time.Second {
		t.Errorf("expected retry after 5s, got %v", got)
	}
}

func TestPermanentError_NotTransient(t *testing.T) {
	if IsTransient(ErrContractReverted) {
		t.Error("expected IsTransient() = false for reverted call")
	}
	if GetRetryAfter(ErrContractReverted) != 0 {
		t.Error("expected GetRetryAfter() = 0 for permanent error")
	}
	if IsTransient(nil) || GetRetryAfter(nil) != 0 {
		t.Error("expected nil error to be neither transient nor delayed")
	}
}
