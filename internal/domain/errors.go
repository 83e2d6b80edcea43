package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain operations
var (
	// ErrNotFound is returned when a requested resource doesn't exist
	ErrNotFound = errors.New("not found")

	// ErrInvalidAddress is returned when a contract address is malformed
	ErrInvalidAddress = errors.New("invalid address")

	// ErrInvalidChainID is returned when a chain id or name cannot be resolved
	ErrInvalidChainID = errors.New("invalid chain ID")

	// ErrMissingAPIKey is returned when an explorer call requires an API key
	// that is not configured. Registry-only analysis still works without one.
	ErrMissingAPIKey = errors.New("missing explorer API key")
)

// RegistryFaultError signals that the verification registry probe itself
// faulted, as opposed to returning a clean miss. An uncertain registry state
// must not be treated as "no match", so this aborts the whole resolution.
type RegistryFaultError struct {
	Err error
}

func (e *RegistryFaultError) Error() string {
	return fmt.Sprintf("registry fault: %v", e.Err)
}

func (e *RegistryFaultError) Unwrap() error { return e.Err }

// NetworkError wraps a transport failure, a non-2xx response, or an
// unparseable body from an external API. Retryable at the client layer;
// exhausted retries surface it for the failing sub-operation only.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }
