package config

import (
	"errors"
	"time"
)

// Sentinel errors for internal use.
var (
	ErrInvalidConfig       = errors.New("invalid configuration")
	ErrInvalidAddress      = errors.New("invalid contract address")
	ErrInvalidToken        = errors.New("invalid token")
	ErrUnknownNetwork      = errors.New("unknown network")
	ErrDetectionDisabled   = errors.New("auto detection disabled")
	ErrProviderRateLimit   = errors.New("provider rate limit exceeded")
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrProviderTimeout     = errors.New("provider request timeout")
	ErrAllProvidersFailed  = errors.New("all providers failed")
	ErrContractReverted    = errors.New("contract call reverted")
	ErrMalformedResponse   = errors.New("malformed contract response")
	ErrCircuitOpen         = errors.New("circuit breaker is open")
	ErrTokenNotFound       = errors.New("token not found")
	ErrInvalidMnemonic     = errors.New("invalid mnemonic")
	ErrMnemonicFileNotSet  = errors.New("mnemonic file path not configured")
	ErrNoWallet            = errors.New("no wallet address given")
)

// TransientError wraps an error that should be retried.
type TransientError struct {
	Err        error
	RetryAfter time.Duration // 0 = use default backoff
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// NewTransientError wraps an error as transient (retriable).
func NewTransientError(err error) error {
	return &TransientError{Err: err}
}

// NewTransientErrorWithRetry wraps with explicit retry delay.
func NewTransientErrorWithRetry(err error, retryAfter time.Duration) error {
	return &TransientError{Err: err, RetryAfter: retryAfter}
}

// IsTransient returns true if the error is transient (retriable).
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// GetRetryAfter returns the retry delay if set, or 0.
func GetRetryAfter(err error) time.Duration {
	var te *TransientError
	if errors.As(err, &te) {
		return te.RetryAfter
	}
	return 0
}

// Error codes returned to API clients.
const (
	ErrorInvalidAddress = "ERROR_INVALID_ADDRESS"
	ErrorInvalidToken   = "ERROR_INVALID_TOKEN"
	ErrorInvalidRequest = "ERROR_INVALID_REQUEST"
	ErrorDatabase       = "ERROR_DATABASE"
	ErrorNoSession      = "ERROR_NO_SESSION"
	ErrorTokenNotFound  = "ERROR_TOKEN_NOT_FOUND"
)
