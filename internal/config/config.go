// Package config loads and manages stagehand configuration.
// Configuration source priority (highest to lowest):
// 1. Environment variables (TAVUS_API_KEY, ELEVENLABS_API_KEY, STAGEHAND_PROVIDER, ...)
// 2. Config file path specified via --config flag
// 3. ~/.config/stagehand/config.yaml
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/stagehand-ai/stagehand/internal/provider"
)

//go:embed providers_default.yaml
var defaultProvidersYAML []byte

// ProviderDefaults holds the default endpoint for a provider.
type ProviderDefaults struct {
	BaseURL string `yaml:"base_url"`
}

// LoadProviderDefaults parses the embedded defaults and merges any user
// overrides from ~/.config/stagehand/providers.yaml.
func LoadProviderDefaults() map[string]ProviderDefaults {
	defs := make(map[string]ProviderDefaults)
	_ = yaml.Unmarshal(defaultProvidersYAML, &defs)

	home, err := os.UserHomeDir()
	if err == nil {
		userPath := filepath.Join(home, ".config", "stagehand", "providers.yaml")
		if data, err := os.ReadFile(userPath); err == nil {
			userDefs := make(map[string]ProviderDefaults)
			if yaml.Unmarshal(data, &userDefs) == nil {
				for name, ud := range userDefs {
					d := defs[name]
					if ud.BaseURL != "" {
						d.BaseURL = ud.BaseURL
					}
					defs[name] = d
				}
			}
		}
	}
	return defs
}

// ProviderConfig holds configuration for a single provider. The API key
// and ids become session credentials; they are read at session-creation
// time only and never written back by the session layer.
type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`

	// ReplicaID selects the video avatar replica (tavus only).
	ReplicaID string `yaml:"replica_id"`

	// AgentID selects the conversational agent (elevenlabs only).
	AgentID string `yaml:"agent_id"`

	// SessionLabel names created conversations. Empty = generated label.
	SessionLabel string `yaml:"session_label"`

	// Context is optional free-text conversational context (tavus only).
	Context string `yaml:"context"`
}

// Config is the complete configuration structure for stagehand.
type Config struct {
	// Provider is the active provider name ("tavus" or "elevenlabs").
	Provider string `yaml:"provider"`

	// EmbedInline displays the conversation in-page and, for channel-capable
	// providers, enables realtime channel acquisition. When false the embed
	// URL is opened as a detached destination instead.
	EmbedInline bool `yaml:"embed_inline"`

	// Providers holds per-provider configuration.
	Providers map[string]*ProviderConfig `yaml:"providers"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Provider:    "tavus",
		EmbedInline: true,
		Providers:   make(map[string]*ProviderConfig),
	}
}

// Load reads the config file and merges environment variable overrides.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			configPath = filepath.Join(home, ".config", "stagehand", "config.yaml")
		}
	}

	// Read config file (use defaults if not found)
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
		}
	}

	applyEnvOverrides(cfg)

	if cfg.Providers == nil {
		cfg.Providers = make(map[string]*ProviderConfig)
	}

	return cfg, nil
}

// GetProviderConfig returns the config for the named provider, or an empty
// config if not found.
func (c *Config) GetProviderConfig(name string) *ProviderConfig {
	if pc, ok := c.Providers[name]; ok {
		return pc
	}
	return &ProviderConfig{}
}

// Credentials maps the named provider's configuration to the credential
// fields its adapter expects. Values are held only for session creation.
func (c *Config) Credentials(name string) provider.Credentials {
	pc := c.GetProviderConfig(name)
	switch name {
	case "tavus":
		return provider.Credentials{
			provider.FieldAPIKey:       pc.APIKey,
			provider.FieldSessionLabel: pc.SessionLabel,
			provider.FieldReplicaID:    pc.ReplicaID,
			provider.FieldContext:      pc.Context,
		}
	case "elevenlabs":
		return provider.Credentials{
			provider.FieldAPIKey:  pc.APIKey,
			provider.FieldAgentID: pc.AgentID,
		}
	default:
		return provider.Credentials{}
	}
}

// BaseURL returns the endpoint override for the named provider: the
// per-provider config value when set, else the merged defaults, else ""
// (adapter default).
func (c *Config) BaseURL(name string) string {
	if pc, ok := c.Providers[name]; ok && pc.BaseURL != "" {
		return pc.BaseURL
	}
	if d, ok := LoadProviderDefaults()[name]; ok {
		return d.BaseURL
	}
	return ""
}

// SaveProviderToFile persists a single provider's config and the active
// provider name into ~/.config/stagehand/config.yaml, preserving all other
// user settings.
func SaveProviderToFile(providerName string, pc ProviderConfig) error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("cannot determine home directory: %w", err)
	}
	cfgPath := filepath.Join(home, ".config", "stagehand", "config.yaml")

	// Read existing file into a generic map to preserve unknown fields.
	raw := make(map[string]any)
	if data, err := os.ReadFile(cfgPath); err == nil {
		_ = yaml.Unmarshal(data, &raw) // ignore errors; start fresh if corrupt
	}

	providers, _ := raw["providers"].(map[string]any)
	if providers == nil {
		providers = make(map[string]any)
	}

	entry := map[string]any{
		"api_key": pc.APIKey,
	}
	if pc.BaseURL != "" {
		entry["base_url"] = pc.BaseURL
	}
	if pc.ReplicaID != "" {
		entry["replica_id"] = pc.ReplicaID
	}
	if pc.AgentID != "" {
		entry["agent_id"] = pc.AgentID
	}
	if pc.SessionLabel != "" {
		entry["session_label"] = pc.SessionLabel
	}
	if pc.Context != "" {
		entry["context"] = pc.Context
	}
	providers[providerName] = entry
	raw["providers"] = providers
	raw["provider"] = providerName

	if err := os.MkdirAll(filepath.Dir(cfgPath), 0755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := yaml.Marshal(raw)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(cfgPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(cfg *Config) {
	ensure := func(name string) *ProviderConfig {
		if cfg.Providers[name] == nil {
			if cfg.Providers == nil {
				cfg.Providers = make(map[string]*ProviderConfig)
			}
			cfg.Providers[name] = &ProviderConfig{}
		}
		return cfg.Providers[name]
	}

	if v := os.Getenv("TAVUS_API_KEY"); v != "" {
		ensure("tavus").APIKey = v
	}
	if v := os.Getenv("TAVUS_REPLICA_ID"); v != "" {
		ensure("tavus").ReplicaID = v
	}
	if v := os.Getenv("ELEVENLABS_API_KEY"); v != "" {
		ensure("elevenlabs").APIKey = v
	}
	if v := os.Getenv("ELEVENLABS_AGENT_ID"); v != "" {
		ensure("elevenlabs").AgentID = v
	}

	if v := os.Getenv("STAGEHAND_PROVIDER"); v != "" {
		cfg.Provider = v
	}
	switch os.Getenv("STAGEHAND_EMBED") {
	case "1", "true", "yes":
		cfg.EmbedInline = true
	case "0", "false", "no":
		cfg.EmbedInline = false
	}
}
