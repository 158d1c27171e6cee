// Package console implements the operator console: a line-oriented REPL
// that triggers the session manager and dispatcher, and renders session
// state plus transient delivery outcomes. It is a pure reader of manager
// state; all mutation happens inside the session manager.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stagehand-ai/stagehand/internal/config"
	"github.com/stagehand-ai/stagehand/internal/dispatch"
	"github.com/stagehand-ai/stagehand/internal/provider"
	"github.com/stagehand-ai/stagehand/internal/session"
)

// Console is the interactive operator surface.
type Console struct {
	in         *bufio.Scanner
	out        io.Writer
	cfg        *config.Config
	manager    *session.Manager
	dispatcher *dispatch.Dispatcher

	activeProvider string
	lastOutcome    *dispatch.Outcome

	now     func() time.Time
	openURL func(url string) error
}

// New creates a console reading from stdin and writing to stdout.
func New(cfg *config.Config, manager *session.Manager, dispatcher *dispatch.Dispatcher) *Console {
	c := NewWithIO(cfg, manager, dispatcher, os.Stdin, os.Stdout)
	c.openURL = openBrowser
	return c
}

// NewWithIO creates a console over explicit reader/writer (tests).
func NewWithIO(cfg *config.Config, manager *session.Manager, dispatcher *dispatch.Dispatcher, in io.Reader, out io.Writer) *Console {
	s := bufio.NewScanner(in)
	s.Buffer(make([]byte, 64*1024), 64*1024)
	return &Console{
		in:             s,
		out:            out,
		cfg:            cfg,
		manager:        manager,
		dispatcher:     dispatcher,
		activeProvider: cfg.Provider,
		now:            time.Now,
		openURL:        func(string) error { return nil },
	}
}

// Run processes operator input until /quit or EOF. The active session and
// its channel are torn down on every exit path.
func (c *Console) Run(ctx context.Context) error {
	defer c.teardown()

	fmt.Fprintf(c.out, "stagehand console — provider: %s (type /help for commands)\n", c.activeProvider)
	for {
		c.printPrompt()
		if !c.in.Scan() {
			return c.in.Err()
		}
		line := strings.TrimSpace(c.in.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if quit := c.handleCommand(ctx, line); quit {
				return nil
			}
			continue
		}
		c.send(ctx, line)
	}
}

// teardown closes the session when the console surface goes away, so the
// realtime channel release is tied to the surface lifetime, not to the
// operator remembering /close.
func (c *Console) teardown() {
	_ = c.manager.Close()
}

func (c *Console) handleCommand(ctx context.Context, line string) (quit bool) {
	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch cmd {
	case "/quit", "/exit":
		return true
	case "/help":
		c.printHelp()
	case "/start":
		c.start(ctx)
	case "/switch":
		c.switchProvider(rest)
	case "/send":
		c.send(ctx, rest)
	case "/status":
		c.printStatus()
	case "/open":
		c.open()
	case "/close":
		if err := c.manager.Close(); err != nil {
			fmt.Fprintf(c.out, "cannot close: %v\n", err)
			return false
		}
		fmt.Fprintln(c.out, "session closed")
	default:
		fmt.Fprintf(c.out, "unknown command %s (type /help)\n", cmd)
	}
	return false
}

// start provisions a session for the active provider using credentials
// from config. Missing required fields disable the action before any I/O.
func (c *Console) start(ctx context.Context) {
	name := c.activeProvider
	p, err := provider.New(name, c.cfg.BaseURL(name))
	if err != nil {
		fmt.Fprintf(c.out, "%v\n", err)
		return
	}

	creds := c.cfg.Credentials(name)
	if name == "tavus" && creds.Get(provider.FieldSessionLabel) == "" {
		creds[provider.FieldSessionLabel] = "stagehand-" + uuid.New().String()[:8]
	}

	if missing := provider.MissingFields(p, creds); len(missing) > 0 {
		fmt.Fprintf(c.out, "start unavailable: configure %s for %s first (stagehand init)\n",
			strings.Join(missing, ", "), name)
		return
	}

	if snap := c.manager.Snapshot(); snap.State == session.StateRequesting {
		fmt.Fprintln(c.out, "a session request is already in flight")
		return
	}

	sess, err := c.manager.Start(ctx, p, creds)
	if err != nil {
		fmt.Fprintf(c.out, "could not start session: %v\n", err)
		return
	}

	fmt.Fprintf(c.out, "session %s active on %s\n", sess.ID, name)
	snap := c.manager.Snapshot()
	switch {
	case c.cfg.EmbedInline && snap.HasChannel:
		fmt.Fprintf(c.out, "embedded inline: %s (direct delivery ready)\n", sess.EmbedURL)
	case c.cfg.EmbedInline:
		fmt.Fprintf(c.out, "embedded inline: %s (manual relay)\n", sess.EmbedURL)
	default:
		fmt.Fprintf(c.out, "conversation URL: %s (use /open to launch)\n", sess.EmbedURL)
	}
}

// switchProvider changes the active provider. An active session is closed
// first, which also tears down any bound channel.
func (c *Console) switchProvider(name string) {
	if name == "" {
		fmt.Fprintf(c.out, "usage: /switch <%s>\n", strings.Join(provider.Names(), "|"))
		return
	}
	if _, err := provider.New(name, ""); err != nil {
		fmt.Fprintf(c.out, "%v\n", err)
		return
	}
	if snap := c.manager.Snapshot(); snap.State == session.StateActive {
		if err := c.manager.Close(); err != nil {
			fmt.Fprintf(c.out, "cannot switch: %v\n", err)
			return
		}
		fmt.Fprintln(c.out, "previous session closed")
	}
	c.activeProvider = name
	fmt.Fprintf(c.out, "provider: %s\n", name)
}

// send dispatches text into the live conversation and records the outcome
// for transient display.
func (c *Console) send(ctx context.Context, text string) {
	out, err := c.dispatcher.Dispatch(ctx, c.manager.DispatchTarget(), text)
	if err == dispatch.ErrEmptyMessage {
		fmt.Fprintln(c.out, "nothing to send")
		return
	}
	c.lastOutcome = &out
	if err != nil {
		fmt.Fprintf(c.out, "✘ %s\n", out.Detail)
		return
	}
	fmt.Fprintf(c.out, "✔ %s: %s\n", out.Path, out.Detail)
}

func (c *Console) open() {
	snap := c.manager.Snapshot()
	if snap.Session == nil {
		fmt.Fprintln(c.out, "no active session (use /start)")
		return
	}
	if err := c.openURL(snap.Session.EmbedURL); err != nil {
		fmt.Fprintf(c.out, "could not open browser: %v\nconversation URL: %s\n", err, snap.Session.EmbedURL)
		return
	}
	fmt.Fprintf(c.out, "opened %s\n", snap.Session.EmbedURL)
}

func (c *Console) printStatus() {
	snap := c.manager.Snapshot()
	fmt.Fprintf(c.out, "provider: %s\n", c.activeProvider)
	fmt.Fprintf(c.out, "state:    %s\n", snap.State)
	if snap.LastError != "" {
		fmt.Fprintf(c.out, "error:    %s\n", snap.LastError)
	}
	if snap.Session != nil {
		fmt.Fprintf(c.out, "session:  %s (created %s)\n", snap.Session.ID, snap.Session.CreatedAt.Format("15:04:05"))
		fmt.Fprintf(c.out, "embed:    %s\n", snap.Session.EmbedURL)
	}
	if snap.HasChannel {
		fmt.Fprintf(c.out, "channel:  %s\n", snap.ChannelState)
	} else {
		fmt.Fprintln(c.out, "channel:  none (manual relay)")
	}
}

// printPrompt renders the status prefix plus the last delivery outcome,
// which self-clears after its display window.
func (c *Console) printPrompt() {
	snap := c.manager.Snapshot()

	if c.lastOutcome != nil && c.lastOutcome.Expired(c.now()) {
		c.lastOutcome = nil
	}

	prefix := snap.State.String()
	if snap.State == session.StateActive && snap.HasChannel {
		prefix += "·" + snap.ChannelState.String()
	}
	if c.lastOutcome != nil {
		mark := "✔"
		if !c.lastOutcome.Success {
			mark = "✘"
		}
		prefix += " " + mark + string(c.lastOutcome.Path)
	}
	fmt.Fprintf(c.out, "[%s] > ", prefix)
}

func (c *Console) printHelp() {
	fmt.Fprint(c.out, `commands:
  /start            create a session with the active provider
  /switch <name>    change provider (closes any active session)
  /send <text>      inject text into the live conversation
  <text>            same as /send
  /status           show session, channel and error state
  /open             open the conversation URL in the browser
  /close            end the session and release the channel
  /quit             exit
`)
}

// openBrowser launches the platform browser on the URL as the detached
// embedding destination.
func openBrowser(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		return exec.Command("xdg-open", url).Start()
	}
}
