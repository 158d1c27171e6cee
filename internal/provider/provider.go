// Package provider defines the unified interface and shared types for all
// conversation providers. Each provider adapter (tavus.go, elevenlabs.go)
// implements the Provider interface, normalizing vendor-specific session
// creation contracts into a unified Session.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ── Credential fields ────────────────────────────────────────────────────────

const (
	FieldAPIKey       = "api_key"
	FieldSessionLabel = "session_label"
	FieldReplicaID    = "replica_id"
	FieldAgentID      = "agent_id"
	FieldContext      = "context"
)

// Credentials maps credential field names to operator-supplied values.
// Held only for the duration of session creation, never persisted.
type Credentials map[string]string

// Get returns the trimmed value for a field, or "" when unset.
func (c Credentials) Get(field string) string {
	return strings.TrimSpace(c[field])
}

// ── Session ──────────────────────────────────────────────────────────────────

// Session is a live conversation instance created by a provider.
// Exactly one Session is active at a time; see the session package.
type Session struct {
	// ID is the provider-assigned conversation identifier (opaque).
	ID string

	// Provider is the name of the adapter that created this session.
	Provider string

	// EmbedURL is the embeddable conversation URL returned by the provider.
	EmbedURL string

	CreatedAt time.Time
}

// ── Provider interface ───────────────────────────────────────────────────────

// Provider is the unified interface for all conversation providers.
// Implementors are responsible for:
// 1. Declaring which credential fields are required
// 2. Converting Credentials into the provider's session-creation request
// 3. Mapping HTTP and transport failures into the shared error taxonomy
type Provider interface {
	// CreateSession provisions a live conversation session.
	// Required fields are validated before any request is issued; exactly
	// one attempt is made per call. Retries are operator-initiated.
	CreateSession(ctx context.Context, creds Credentials) (*Session, error)

	// Name returns the provider identifier, e.g. "tavus", "elevenlabs".
	Name() string

	// SupportsDirectChannel reports whether sessions from this provider
	// expose a push-capable realtime channel for direct message injection.
	SupportsDirectChannel() bool

	// RequiredFields returns the credential fields that must be non-empty
	// before CreateSession may be invoked.
	RequiredFields() []string
}

// MissingFields returns the required credential fields that are empty.
// A non-empty result means CreateSession must not be invoked yet; the UI
// surfaces this as a disabled action rather than a runtime error.
func MissingFields(p Provider, creds Credentials) []string {
	var missing []string
	for _, f := range p.RequiredFields() {
		if creds.Get(f) == "" {
			missing = append(missing, f)
		}
	}
	return missing
}

// New returns the adapter for the named provider. baseURL overrides the
// provider's default endpoint (empty = provider default); tests point it
// at a local server.
func New(name, baseURL string) (Provider, error) {
	switch name {
	case "tavus":
		return NewTavusProvider(baseURL, nil), nil
	case "elevenlabs":
		return NewElevenLabsProvider(baseURL, nil), nil
	default:
		return nil, fmt.Errorf("unknown provider %q (supported: tavus, elevenlabs)", name)
	}
}

// Names lists the supported provider identifiers.
func Names() []string {
	return []string{"tavus", "elevenlabs"}
}

// ── HTTP plumbing shared by adapters ─────────────────────────────────────────

// defaultHTTPTimeout bounds a single session-creation attempt; an expired
// deadline surfaces as a TransportError.
const defaultHTTPTimeout = 30 * time.Second

func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: defaultHTTPTimeout}
}

// decodeProviderError builds a ProviderError from a non-success response.
// The human-readable message is extracted from a JSON body "message" field
// when present, falling back to a generic status line.
func decodeProviderError(resp *http.Response) *ProviderError {
	msg := fmt.Sprintf("API Error: %d", resp.StatusCode)
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err == nil && len(body) > 0 {
		var parsed struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(body, &parsed) == nil && parsed.Message != "" {
			msg = parsed.Message
		}
	}
	return &ProviderError{Status: resp.StatusCode, Message: msg}
}
