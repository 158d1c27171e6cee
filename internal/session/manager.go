// Package session owns the session lifecycle state machine: provisioning
// through a provider adapter, tracking the single active session, and the
// teardown ordering of the bound realtime channel.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/stagehand-ai/stagehand/internal/channel"
	"github.com/stagehand-ai/stagehand/internal/dispatch"
	"github.com/stagehand-ai/stagehand/internal/provider"
)

// ── Lifecycle state ──────────────────────────────────────────────────────────

type State int

const (
	// StateIdle: no session exists.
	StateIdle State = iota

	// StateRequesting: exactly one session-creation call is in flight.
	StateRequesting

	// StateActive: a live session is held.
	StateActive

	// StateError: the last creation attempt failed. The captured message
	// is kept for display; for retry purposes this behaves like Idle.
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequesting:
		return "requesting"
	case StateActive:
		return "active"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrRequestInFlight rejects a second session operation while a creation
// call is still pending. The UI disables its triggers during Requesting;
// this guard backs that up.
var ErrRequestInFlight = errors.New("session creation already in progress")

// ── Manager ──────────────────────────────────────────────────────────────────

// Manager is the sole writer of session and channel state. The UI layer is
// a pure reader via Snapshot and a trigger via Start/Close.
type Manager struct {
	channels    *channel.Controller
	embedInline bool
	warnf       func(format string, args ...any)

	mu      sync.Mutex
	state   State
	prov    provider.Provider
	current *provider.Session
	lastErr string
}

// NewManager creates a manager over the channel controller. embedInline is
// the operator's display preference: only with it set does an Active
// channel-capable session trigger realtime channel acquisition.
func NewManager(channels *channel.Controller, embedInline bool) *Manager {
	return &Manager{
		channels:    channels,
		embedInline: embedInline,
		warnf: func(format string, args ...any) {
			fmt.Fprintf(os.Stderr, format+"\n", args...)
		},
	}
}

// Start provisions a new session through the provider. When a session is
// already active this is a replacement: the bound channel is destroyed
// before the new creation request begins. On failure the manager enters
// Error (message kept for display) and the operator may retry immediately.
func (m *Manager) Start(ctx context.Context, p provider.Provider, creds provider.Credentials) (*provider.Session, error) {
	m.mu.Lock()
	if m.state == StateRequesting {
		m.mu.Unlock()
		return nil, ErrRequestInFlight
	}
	m.channels.DestroyCurrent()
	m.current = nil
	m.prov = p
	m.state = StateRequesting
	m.mu.Unlock()

	sess, err := p.CreateSession(ctx, creds)

	m.mu.Lock()
	if err != nil {
		m.state = StateError
		m.lastErr = err.Error()
		m.mu.Unlock()
		return nil, err
	}
	m.state = StateActive
	m.current = sess
	m.lastErr = ""
	m.mu.Unlock()

	// Channel acquisition is an independent sub-operation: its failure
	// leaves the session Active with no channel bound, and delivery falls
	// back to manual relay.
	if p.SupportsDirectChannel() && m.embedInline {
		if _, cerr := m.channels.Acquire(ctx, sess.ID, sess.EmbedURL); cerr != nil {
			m.warnf("[channel] warning: %v (falling back to manual relay)", cerr)
		}
	}
	return sess, nil
}

// Close tears down the bound channel and returns to Idle. Switching
// provider while active is Close followed by Start.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.state == StateRequesting {
		m.mu.Unlock()
		return ErrRequestInFlight
	}
	m.state = StateIdle
	m.current = nil
	m.prov = nil
	m.lastErr = ""
	m.mu.Unlock()

	m.channels.DestroyCurrent()
	return nil
}

// DispatchTarget builds the delivery target for the active session. With
// no active session the zero target routes everything to manual relay.
func (m *Manager) DispatchTarget() dispatch.Target {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateActive || m.current == nil {
		return dispatch.Target{}
	}
	return dispatch.Target{
		ConversationID: m.current.ID,
		DirectCapable:  m.prov.SupportsDirectChannel(),
		Channel:        m.channels.Current(),
	}
}

// ── Read-only view ───────────────────────────────────────────────────────────

// Snapshot is a point-in-time read of manager state for rendering.
type Snapshot struct {
	State        State
	Provider     string
	Session      *provider.Session
	HasChannel   bool
	ChannelState channel.State
	LastError    string
	EmbedInline  bool
}

// Snapshot returns a copy of the current state. The returned Session is a
// copy; mutating it does not affect the manager.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{
		State:       m.state,
		LastError:   m.lastErr,
		EmbedInline: m.embedInline,
	}
	if m.prov != nil {
		snap.Provider = m.prov.Name()
	}
	if m.current != nil {
		s := *m.current
		snap.Session = &s
	}
	if ch := m.channels.Current(); ch != nil {
		snap.HasChannel = true
		snap.ChannelState = ch.State()
	}
	return snap
}
