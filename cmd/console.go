package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/stagehand-ai/stagehand/internal/channel"
	"github.com/stagehand-ai/stagehand/internal/console"
	"github.com/stagehand-ai/stagehand/internal/dispatch"
	"github.com/stagehand-ai/stagehand/internal/session"
)

// runConsole starts the interactive operator console.
func runConsole() error {
	cfg := initConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	controller := channel.NewController(channel.NewWebSocketRuntime())
	manager := session.NewManager(controller, cfg.EmbedInline)

	return console.New(cfg, manager, dispatch.New()).Run(ctx)
}
