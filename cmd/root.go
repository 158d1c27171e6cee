package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/stagehand-ai/stagehand/internal/config"
	"github.com/stagehand-ai/stagehand/internal/provider"
)

var (
	cfgFile      string
	providerFlag string
	embedFlag    bool

	rootCmd *cobra.Command

	// Package-level version info, set by Execute().
	appVersion string
	appCommit  string
	appDate    string
)

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date

	rootCmd = &cobra.Command{
		Use:   "stagehand",
		Short: "Operator console for live AI conversation sessions",
		Long: "stagehand provisions live AI conversation sessions through Tavus (video)\n" +
			"or ElevenLabs (voice), optionally embeds the realtime media channel, and\n" +
			"injects prepared text snippets into the live conversation.",
		// Running stagehand with no subcommand starts the console;
		// piped stdin goes through the non-interactive path instead.
		RunE: func(cmd *cobra.Command, args []string) error {
			if !term.IsTerminal(int(os.Stdin.Fd())) {
				return runOnce("")
			}
			return runConsole()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default ~/.config/stagehand/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&providerFlag, "provider", "p", "", "override provider (tavus|elevenlabs)")
	rootCmd.PersistentFlags().BoolVar(&embedFlag, "embed", true, "embed the conversation inline (enables direct delivery where supported)")

	// Subcommands
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(newVersionCmd(version, commit, date))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initConfig loads configuration, applying CLI flag overrides.
func initConfig() *config.Config {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	// CLI flags override config values
	if providerFlag != "" {
		cfg.Provider = providerFlag
	}
	if rootCmd != nil && rootCmd.PersistentFlags().Changed("embed") {
		cfg.EmbedInline = embedFlag
	}

	return cfg
}

// buildProvider creates a Provider instance based on configuration.
func buildProvider(cfg *config.Config) (provider.Provider, error) {
	name := cfg.Provider
	p, err := provider.New(name, cfg.BaseURL(name))
	if err != nil {
		return nil, err
	}
	if cfg.GetProviderConfig(name).APIKey == "" {
		return nil, fmt.Errorf(
			"API key not configured for provider %q.\n"+
				"Set it via:\n"+
				"  - stagehand init\n"+
				"  - %s in the environment\n"+
				"  - providers.%s.api_key in ~/.config/stagehand/config.yaml",
			name, apiKeyEnvVar(name), name)
	}
	return p, nil
}

func apiKeyEnvVar(name string) string {
	switch name {
	case "elevenlabs":
		return "ELEVENLABS_API_KEY"
	default:
		return "TAVUS_API_KEY"
	}
}
