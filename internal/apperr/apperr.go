// Package apperr defines the error taxonomy propagated at the engine
// boundary (spec §7): IO, Serialization, Network, Database, Provider,
// Tool, Channel, and Config/Auth/Security/Keyring/Process.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for retry/propagation decisions.
type Kind string

const (
	KindIO             Kind = "io"
	KindSerialization  Kind = "serialization"
	KindNetwork        Kind = "network"
	KindDatabase       Kind = "database"
	KindProvider       Kind = "provider"
	KindTool           Kind = "tool"
	KindChannel        Kind = "channel"
	KindConfig         Kind = "config"
	KindAuth           Kind = "auth"
	KindSecurity       Kind = "security"
	KindKeyring        Kind = "keyring"
	KindProcess        Kind = "process"
)

// ProviderSubKind further classifies Provider errors so the channel runner
// can fail over instead of surfacing a generic failure (spec §4.K, §7).
type ProviderSubKind string

const (
	ProviderBilling   ProviderSubKind = "billing"
	ProviderAuth      ProviderSubKind = "auth"
	ProviderQuota     ProviderSubKind = "quota"
	ProviderRateLimit ProviderSubKind = "rate_limit"
	ProviderOther     ProviderSubKind = "other"
)

// Error is the sum type propagated at the engine boundary.
type Error struct {
	Kind        Kind
	ProviderSub ProviderSubKind
	Op          string // operation/field path, when known
	Status      int    // HTTP status, when applicable
	RetryAfterS int    // seconds from a Retry-After header, 0 if absent
	Err         error
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err as an apperr.Error of the given kind.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Provider wraps err as a Provider-kind error with a sub-classification.
func Provider(sub ProviderSubKind, status int, err error) *Error {
	return &Error{Kind: KindProvider, ProviderSub: sub, Status: status, Err: err}
}

// Network wraps err as a Network-kind error carrying HTTP status and any
// Retry-After value, used by the retry/backoff helper.
func Network(status int, retryAfterS int, err error) *Error {
	return &Error{Kind: KindNetwork, Status: status, RetryAfterS: retryAfterS, Err: err}
}

// IsRetryableStatus reports whether an HTTP status code is retryable
// (spec §7: 429, 500, 502, 503, 504).
func IsRetryableStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// IsRetryable reports whether err should be retried by the transport layer.
// Only Network errors with a retryable status, or no status at all
// (transport-level timeout/connect failures), are retryable.
func IsRetryable(err error) bool {
	var ae *Error
	if !errors.As(err, &ae) {
		return false
	}
	if ae.Kind != KindNetwork {
		return false
	}
	if ae.Status == 0 {
		return true // connect/timeout error, no status to inspect
	}
	return IsRetryableStatus(ae.Status)
}

// IsProviderBillingError reports whether err is a billing/quota/auth-class
// provider error that the channel runner should fail over on rather than
// report as a generic failure to the user (spec §4.K, §7).
func IsProviderBillingError(err error) bool {
	var ae *Error
	if !errors.As(err, &ae) {
		return false
	}
	if ae.Kind != KindProvider {
		return false
	}
	switch ae.ProviderSub {
	case ProviderBilling, ProviderAuth, ProviderQuota, ProviderRateLimit:
		return true
	default:
		return false
	}
}

// AsKind extracts the Kind of err, if it is (or wraps) an *Error.
func AsKind(err error) (Kind, bool) {
	var ae *Error
	if !errors.As(err, &ae) {
		return "", false
	}
	return ae.Kind, true
}
