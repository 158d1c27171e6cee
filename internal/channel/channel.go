// Package channel manages the optional push-capable realtime channel bound
// to an active session: acquisition, the join handshake, and guaranteed
// idempotent teardown. A channel never outlives the session it is bound to.
package channel

import (
	"context"
	"fmt"
	"sync"
)

// ── Channel state ────────────────────────────────────────────────────────────

type State int

const (
	StateUninitialized State = iota
	StateJoining
	StateJoined
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateJoining:
		return "joining"
	case StateJoined:
		return "joined"
	case StateDestroyed:
		return "destroyed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// InitError reports that the realtime runtime is unavailable or the join
// handshake did not complete. It is recoverable: message delivery falls
// back to manual relay.
type InitError struct {
	Err error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("realtime channel init failed: %v", e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }

// ── Runtime abstraction ──────────────────────────────────────────────────────

// Runtime is the externally supplied realtime media runtime. A nil Runtime
// is a recoverable condition, not fatal: Acquire fails with InitError.
type Runtime interface {
	// CreateChannel establishes the underlying connection for the given
	// conversation URL. The connection is not joined yet.
	CreateChannel(url string) (Conn, error)
}

// Conn is a single realtime connection produced by a Runtime.
type Conn interface {
	// Join performs the join handshake. The connection carries application
	// messages only after Join returns nil.
	Join(ctx context.Context) error

	// SendAppMessage pushes an application-level event into the live
	// conversation.
	SendAppMessage(ctx context.Context, payload any) error

	// Destroy releases the underlying connection. Must be idempotent.
	Destroy() error
}

// ── Channel ──────────────────────────────────────────────────────────────────

// Channel is a realtime channel bound to exactly one session.
type Channel struct {
	sessionID string

	mu    sync.Mutex
	state State
	conn  Conn

	destroyOnce sync.Once
}

// SessionID returns the id of the session this channel is bound to.
func (c *Channel) SessionID() string { return c.sessionID }

// State returns the current channel state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Send pushes an application-level payload over the channel.
// Only valid while the channel is Joined.
func (c *Channel) Send(ctx context.Context, payload any) error {
	c.mu.Lock()
	state, conn := c.state, c.conn
	c.mu.Unlock()
	if state != StateJoined {
		return fmt.Errorf("channel is %s, not joined", state)
	}
	return conn.SendAppMessage(ctx, payload)
}

// Destroy tears the channel down and releases the underlying connection.
// Safe to call multiple times; the release runs exactly once.
func (c *Channel) Destroy() {
	c.destroyOnce.Do(func() {
		c.mu.Lock()
		conn := c.conn
		c.state = StateDestroyed
		c.mu.Unlock()
		if conn != nil {
			_ = conn.Destroy()
		}
	})
}

// ── Controller ───────────────────────────────────────────────────────────────

// Controller owns at most one live channel at a time. Acquiring a new
// channel always destroys the previous one first.
type Controller struct {
	runtime Runtime

	mu      sync.Mutex
	current *Channel
}

// NewController creates a controller over the given runtime.
// runtime may be nil when no realtime runtime is available.
func NewController(runtime Runtime) *Controller {
	return &Controller{runtime: runtime}
}

// Acquire dials and joins a realtime channel for the session. Any prior
// channel is destroyed before the new connection is attempted. Failures
// surface as InitError and leave no channel bound.
func (c *Controller) Acquire(ctx context.Context, sessionID, embedURL string) (*Channel, error) {
	c.DestroyCurrent()

	if c.runtime == nil {
		return nil, &InitError{Err: fmt.Errorf("no realtime runtime available")}
	}

	conn, err := c.runtime.CreateChannel(embedURL)
	if err != nil {
		return nil, &InitError{Err: err}
	}

	ch := &Channel{sessionID: sessionID, state: StateJoining, conn: conn}
	if err := conn.Join(ctx); err != nil {
		ch.Destroy()
		return nil, &InitError{Err: err}
	}

	ch.mu.Lock()
	ch.state = StateJoined
	ch.mu.Unlock()

	c.mu.Lock()
	c.current = ch
	c.mu.Unlock()
	return ch, nil
}

// Current returns the live channel, or nil when none is bound.
func (c *Controller) Current() *Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// DestroyCurrent tears down the bound channel, if any. Idempotent.
func (c *Controller) DestroyCurrent() {
	c.mu.Lock()
	ch := c.current
	c.current = nil
	c.mu.Unlock()
	if ch != nil {
		ch.Destroy()
	}
}
