package provider

import (
	"fmt"
	"strings"
)

// ValidationError reports required credential fields that are empty.
// It is produced before any I/O happens.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing required field(s): %s", strings.Join(e.Fields, ", "))
}

// TransportError wraps a network-level failure (connection refused, DNS,
// client-side timeout) during a provider call.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("provider unreachable: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProviderError is a non-success HTTP response from a provider.
// Message carries the body's "message" field when present, otherwise a
// generic "API Error: <status>" line.
type ProviderError struct {
	Status  int
	Message string
}

func (e *ProviderError) Error() string { return e.Message }
