package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
)

const defaultElevenLabsBaseURL = "https://api.elevenlabs.io"

// ElevenLabsProvider implements Provider for ElevenLabs Conversational AI.
// Sessions are voice-only: the signed URL is embeddable but there is no
// push-capable channel, so message delivery always falls back to relay.
type ElevenLabsProvider struct {
	baseURL string
	client  *http.Client
}

// NewElevenLabsProvider creates an ElevenLabs adapter. baseURL and client
// may be empty/nil to use the production endpoint and a default client.
func NewElevenLabsProvider(baseURL string, client *http.Client) *ElevenLabsProvider {
	if baseURL == "" {
		baseURL = defaultElevenLabsBaseURL
	}
	if client == nil {
		client = defaultHTTPClient()
	}
	return &ElevenLabsProvider{baseURL: baseURL, client: client}
}

func (p *ElevenLabsProvider) Name() string                { return "elevenlabs" }
func (p *ElevenLabsProvider) SupportsDirectChannel() bool { return false }

func (p *ElevenLabsProvider) RequiredFields() []string {
	return []string{FieldAPIKey, FieldAgentID}
}

type elevenLabsSignedURLResponse struct {
	SignedURL string `json:"signed_url"`
}

func (p *ElevenLabsProvider) CreateSession(ctx context.Context, creds Credentials) (*Session, error) {
	if missing := MissingFields(p, creds); len(missing) > 0 {
		return nil, &ValidationError{Fields: missing}
	}

	endpoint := p.baseURL + "/v1/convai/conversation/get_signed_url?agent_id=" +
		url.QueryEscape(creds.Get(FieldAgentID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build elevenlabs request: %w", err)
	}
	req.Header.Set("xi-api-key", creds.Get(FieldAPIKey))

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, decodeProviderError(resp)
	}

	var out elevenLabsSignedURLResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode elevenlabs response: %w", err)
	}
	if out.SignedURL == "" {
		return nil, fmt.Errorf("elevenlabs response missing signed_url")
	}

	// ElevenLabs does not return a conversation id with the signed URL;
	// assign a local opaque id so the session is addressable in the UI.
	return &Session{
		ID:        "elabs-" + uuid.New().String()[:8],
		Provider:  p.Name(),
		EmbedURL:  out.SignedURL,
		CreatedAt: time.Now(),
	}, nil
}
