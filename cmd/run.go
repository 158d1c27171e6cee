package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/stagehand-ai/stagehand/internal/channel"
	"github.com/stagehand-ai/stagehand/internal/dispatch"
	"github.com/stagehand-ai/stagehand/internal/provider"
	"github.com/stagehand-ai/stagehand/internal/session"
)

func newRunCmd() *cobra.Command {
	var label string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Provision a session non-interactively and relay stdin lines",
		Long: "run creates a session with the configured provider, prints its conversation\n" +
			"URL, then dispatches each stdin line into the conversation until EOF.\n" +
			"The session and any realtime channel are torn down on exit.",
		Example: `  stagehand run --label demo
  echo "welcome to the booth" | stagehand run -p tavus`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(label)
		},
	}

	cmd.Flags().StringVarP(&label, "label", "l", "", "session label (default: generated)")

	return cmd
}

// runOnce provisions a single session and relays stdin into it.
func runOnce(label string) error {
	cfg := initConfig()

	p, err := buildProvider(cfg)
	if err != nil {
		return err
	}

	creds := cfg.Credentials(cfg.Provider)
	if label != "" {
		creds[provider.FieldSessionLabel] = label
	}
	if cfg.Provider == "tavus" && creds.Get(provider.FieldSessionLabel) == "" {
		creds[provider.FieldSessionLabel] = "stagehand-" + uuid.New().String()[:8]
	}
	if missing := provider.MissingFields(p, creds); len(missing) > 0 {
		return fmt.Errorf("missing required field(s) for %s: %s", p.Name(), strings.Join(missing, ", "))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	controller := channel.NewController(channel.NewWebSocketRuntime())
	manager := session.NewManager(controller, cfg.EmbedInline)
	defer manager.Close()

	sess, err := manager.Start(ctx, p, creds)
	if err != nil {
		return fmt.Errorf("could not start session: %w", err)
	}
	fmt.Printf("session %s active on %s\n", sess.ID, p.Name())
	fmt.Printf("conversation URL: %s\n", sess.EmbedURL)

	dispatcher := dispatch.New()
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 64*1024), 64*1024)
	for scanner.Scan() {
		out, err := dispatcher.Dispatch(ctx, manager.DispatchTarget(), scanner.Text())
		if err == dispatch.ErrEmptyMessage {
			continue
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "✘ %s\n", out.Detail)
			continue
		}
		fmt.Printf("✔ %s: %s\n", out.Path, out.Detail)
	}
	return scanner.Err()
}
