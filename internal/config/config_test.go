package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stagehand-ai/stagehand/internal/provider"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Provider != "tavus" {
		t.Errorf("expected default provider 'tavus', got %q", cfg.Provider)
	}
	if !cfg.EmbedInline {
		t.Error("expected embed_inline default true")
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	cfg, err := Load("/nonexistent/config.yaml")
	if err != nil {
		t.Fatalf("expected no error for missing file, got %v", err)
	}
	// Should return default config.
	if cfg.Provider != "tavus" {
		t.Errorf("expected default provider, got %q", cfg.Provider)
	}
}

func TestLoad_ValidYAML(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "config.yaml")
	yaml := `
provider: elevenlabs
embed_inline: false
providers:
  elevenlabs:
    api_key: k1
    agent_id: a1
  tavus:
    api_key: k2
    replica_id: r1
    session_label: demo
    context: "friendly kiosk greeter"
`
	if err := os.WriteFile(path, []byte(yaml), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Provider != "elevenlabs" {
		t.Errorf("provider = %q, want elevenlabs", cfg.Provider)
	}
	if cfg.EmbedInline {
		t.Error("embed_inline should be false")
	}
	if got := cfg.GetProviderConfig("tavus").ReplicaID; got != "r1" {
		t.Errorf("tavus replica_id = %q, want r1", got)
	}
	if got := cfg.GetProviderConfig("elevenlabs").AgentID; got != "a1" {
		t.Errorf("elevenlabs agent_id = %q, want a1", got)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "config.yaml")
	if err := os.WriteFile(path, []byte("provider: [unclosed"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for invalid yaml")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TAVUS_API_KEY", "env-key")
	t.Setenv("STAGEHAND_PROVIDER", "elevenlabs")
	t.Setenv("STAGEHAND_EMBED", "false")

	cfg, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Provider != "elevenlabs" {
		t.Errorf("provider = %q, want elevenlabs from env", cfg.Provider)
	}
	if cfg.EmbedInline {
		t.Error("embed_inline should be false from env")
	}
	if got := cfg.GetProviderConfig("tavus").APIKey; got != "env-key" {
		t.Errorf("tavus api_key = %q, want env-key", got)
	}
}

func TestCredentialsMapping(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Providers["tavus"] = &ProviderConfig{
		APIKey: "k", ReplicaID: "r1", SessionLabel: "demo", Context: "ctx",
	}
	cfg.Providers["elevenlabs"] = &ProviderConfig{APIKey: "k2", AgentID: "a1"}

	creds := cfg.Credentials("tavus")
	if creds.Get(provider.FieldAPIKey) != "k" ||
		creds.Get(provider.FieldReplicaID) != "r1" ||
		creds.Get(provider.FieldSessionLabel) != "demo" ||
		creds.Get(provider.FieldContext) != "ctx" {
		t.Errorf("tavus credentials = %v", creds)
	}

	creds = cfg.Credentials("elevenlabs")
	if creds.Get(provider.FieldAPIKey) != "k2" || creds.Get(provider.FieldAgentID) != "a1" {
		t.Errorf("elevenlabs credentials = %v", creds)
	}

	if len(cfg.Credentials("zoom")) != 0 {
		t.Error("unknown provider should map to empty credentials")
	}
}

func TestBaseURLFallsBackToDefaults(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.BaseURL("tavus"); got != "https://tavusapi.com" {
		t.Errorf("tavus base url = %q", got)
	}

	cfg.Providers["tavus"] = &ProviderConfig{BaseURL: "http://localhost:9999"}
	if got := cfg.BaseURL("tavus"); got != "http://localhost:9999" {
		t.Errorf("override base url = %q", got)
	}
}
