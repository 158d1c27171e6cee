// Package dispatch decides, per message, whether to deliver via the direct
// realtime channel or fall back to copying the text to the clipboard for
// manual relay, and reports the outcome for transient display.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"

	"github.com/stagehand-ai/stagehand/internal/channel"
)

// ── Delivery paths and outcome ───────────────────────────────────────────────

type Path string

const (
	PathDirect      Path = "direct"
	PathManualRelay Path = "manual-relay"
)

// DisplayTTL is how long a delivery outcome stays on screen before the UI
// clears it. The dispatcher itself holds no delivery history.
const DisplayTTL = 4 * time.Second

// Outcome describes a single delivery attempt for transient UI display.
type Outcome struct {
	Path    Path
	Success bool
	Detail  string
	At      time.Time
}

// Expired reports whether the outcome's display window has elapsed.
func (o Outcome) Expired(now time.Time) bool {
	return now.Sub(o.At) >= DisplayTTL
}

// ── Errors ───────────────────────────────────────────────────────────────────

// ErrEmptyMessage rejects a message that is empty after trimming. No
// network or clipboard activity happens for such a message.
var ErrEmptyMessage = errors.New("message is empty")

// DirectError reports that a direct push over the realtime channel failed.
// There is no silent fallback; retrying is the operator's call.
type DirectError struct {
	Err error
}

func (e *DirectError) Error() string {
	return fmt.Sprintf("direct delivery failed: %v", e.Err)
}

func (e *DirectError) Unwrap() error { return e.Err }

// ClipboardError reports that the manual-relay clipboard write failed.
type ClipboardError struct {
	Err error
}

func (e *ClipboardError) Error() string {
	return fmt.Sprintf("clipboard write failed: %v", e.Err)
}

func (e *ClipboardError) Unwrap() error { return e.Err }

// ── Clipboard abstraction ────────────────────────────────────────────────────

// Clipboard abstracts the platform clipboard used by the manual-relay path.
type Clipboard interface {
	WriteAll(text string) error
}

type systemClipboard struct{}

func (systemClipboard) WriteAll(text string) error { return clipboard.WriteAll(text) }

// ── Target and wire payload ──────────────────────────────────────────────────

// Target describes where a message should go: the active session's
// direct-channel capability and, when bound, its realtime channel.
type Target struct {
	// ConversationID addresses the live conversation in direct pushes.
	ConversationID string

	// DirectCapable is the session provider's static capability flag.
	DirectCapable bool

	// Channel is the bound realtime channel; nil when none was acquired.
	Channel *channel.Channel
}

// echoMessage is the app-level event the video provider's conversation
// accepts for text injection (conversation.echo interaction).
type echoMessage struct {
	MessageType    string         `json:"message_type"` // always "conversation"
	EventType      string         `json:"event_type"`   // always "conversation.echo"
	ConversationID string         `json:"conversation_id"`
	Properties     echoProperties `json:"properties"`
}

type echoProperties struct {
	Text string `json:"text"`
}

// ── Dispatcher ───────────────────────────────────────────────────────────────

// Dispatcher delivers prepared text snippets into the live conversation.
type Dispatcher struct {
	clip Clipboard
}

// New creates a dispatcher backed by the system clipboard.
func New() *Dispatcher {
	return &Dispatcher{clip: systemClipboard{}}
}

// NewWithClipboard creates a dispatcher with a custom clipboard (tests).
func NewWithClipboard(clip Clipboard) *Dispatcher {
	return &Dispatcher{clip: clip}
}

// Dispatch delivers text to the target. Direct delivery is attempted only
// when the provider supports it and the channel is joined; a direct
// failure is reported, never silently retried over the relay path. In all
// other cases the text is copied to the clipboard for manual relay.
func (d *Dispatcher) Dispatch(ctx context.Context, target Target, text string) (Outcome, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Outcome{}, ErrEmptyMessage
	}

	now := time.Now()
	if target.DirectCapable && target.Channel != nil && target.Channel.State() == channel.StateJoined {
		msg := echoMessage{
			MessageType:    "conversation",
			EventType:      "conversation.echo",
			ConversationID: target.ConversationID,
			Properties:     echoProperties{Text: text},
		}
		if err := target.Channel.Send(ctx, msg); err != nil {
			derr := &DirectError{Err: err}
			return Outcome{Path: PathDirect, Success: false, Detail: derr.Error(), At: now}, derr
		}
		return Outcome{Path: PathDirect, Success: true, Detail: "delivered to live conversation", At: now}, nil
	}

	if err := d.clip.WriteAll(text); err != nil {
		cerr := &ClipboardError{Err: err}
		return Outcome{Path: PathManualRelay, Success: false, Detail: cerr.Error(), At: now}, cerr
	}
	return Outcome{Path: PathManualRelay, Success: true, Detail: "copied to clipboard, paste into the conversation", At: now}, nil
}
