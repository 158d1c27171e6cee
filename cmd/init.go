package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stagehand-ai/stagehand/internal/config"
	"github.com/stagehand-ai/stagehand/internal/provider"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Interactive configuration wizard",
		Long:  "Guides you through setting up stagehand: choose a provider, enter your API key and identifiers, and save the config.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit()
		},
	}
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("Welcome to the stagehand configuration wizard!")
	fmt.Println()

	// Provider selection
	providers := provider.Names()
	fmt.Println("Available providers:")
	for i, p := range providers {
		fmt.Printf("  %d. %s\n", i+1, p)
	}
	fmt.Printf("\nSelect provider (1-%d) [1]: ", len(providers))
	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)

	selectedIdx := 0
	if input != "" {
		n := 0
		for _, c := range input {
			if c >= '0' && c <= '9' {
				n = n*10 + int(c-'0')
			}
		}
		if n >= 1 && n <= len(providers) {
			selectedIdx = n - 1
		}
	}
	providerName := providers[selectedIdx]
	fmt.Printf("Selected: %s\n\n", providerName)

	// API key
	fmt.Printf("Enter API key for %s: ", providerName)
	apiKey, _ := reader.ReadString('\n')
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return fmt.Errorf("API key cannot be empty")
	}

	pc := config.ProviderConfig{APIKey: apiKey}

	// Provider-specific identifiers
	switch providerName {
	case "tavus":
		fmt.Print("Enter replica id (e.g. r79e1c033f): ")
		replica, _ := reader.ReadString('\n')
		pc.ReplicaID = strings.TrimSpace(replica)
		if pc.ReplicaID == "" {
			return fmt.Errorf("replica id cannot be empty")
		}
		fmt.Print("Conversational context (optional, Enter to skip): ")
		ctxText, _ := reader.ReadString('\n')
		pc.Context = strings.TrimSpace(ctxText)
	case "elevenlabs":
		fmt.Print("Enter agent id: ")
		agent, _ := reader.ReadString('\n')
		pc.AgentID = strings.TrimSpace(agent)
		if pc.AgentID == "" {
			return fmt.Errorf("agent id cannot be empty")
		}
	}

	if err := config.SaveProviderToFile(providerName, pc); err != nil {
		return err
	}

	fmt.Println("\nConfig saved to ~/.config/stagehand/config.yaml")
	fmt.Println("You can now run: stagehand")
	return nil
}
