package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const defaultTavusBaseURL = "https://tavusapi.com"

// TavusProvider implements Provider for the Tavus Conversational Video
// Interface. Sessions embed a live video avatar and expose a push-capable
// realtime channel, so direct message injection is available.
type TavusProvider struct {
	baseURL string
	client  *http.Client
}

// NewTavusProvider creates a Tavus adapter. baseURL and client may be
// empty/nil to use the production endpoint and a default client.
func NewTavusProvider(baseURL string, client *http.Client) *TavusProvider {
	if baseURL == "" {
		baseURL = defaultTavusBaseURL
	}
	if client == nil {
		client = defaultHTTPClient()
	}
	return &TavusProvider{baseURL: baseURL, client: client}
}

func (p *TavusProvider) Name() string                { return "tavus" }
func (p *TavusProvider) SupportsDirectChannel() bool { return true }

func (p *TavusProvider) RequiredFields() []string {
	return []string{FieldAPIKey, FieldSessionLabel, FieldReplicaID}
}

type tavusCreateRequest struct {
	ReplicaID             string `json:"replica_id"`
	ConversationName      string `json:"conversation_name"`
	ConversationalContext string `json:"conversational_context,omitempty"`
}

type tavusCreateResponse struct {
	ConversationID  string `json:"conversation_id"`
	ConversationURL string `json:"conversation_url"`
}

func (p *TavusProvider) CreateSession(ctx context.Context, creds Credentials) (*Session, error) {
	if missing := MissingFields(p, creds); len(missing) > 0 {
		return nil, &ValidationError{Fields: missing}
	}

	body, err := json.Marshal(tavusCreateRequest{
		ReplicaID:             creds.Get(FieldReplicaID),
		ConversationName:      creds.Get(FieldSessionLabel),
		ConversationalContext: creds.Get(FieldContext),
	})
	if err != nil {
		return nil, fmt.Errorf("encode tavus request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v2/conversations", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build tavus request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", creds.Get(FieldAPIKey))

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, decodeProviderError(resp)
	}

	var out tavusCreateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode tavus response: %w", err)
	}
	if out.ConversationURL == "" {
		return nil, fmt.Errorf("tavus response missing conversation_url")
	}

	return &Session{
		ID:        out.ConversationID,
		Provider:  p.Name(),
		EmbedURL:  out.ConversationURL,
		CreatedAt: time.Now(),
	}, nil
}
