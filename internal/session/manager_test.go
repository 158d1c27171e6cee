package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stagehand-ai/stagehand/internal/channel"
	"github.com/stagehand-ai/stagehand/internal/dispatch"
	"github.com/stagehand-ai/stagehand/internal/provider"
)

// eventLog records lifecycle events across the fake runtime and the mock
// provider endpoints, so ordering invariants can be asserted.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(e string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

// fakeRuntime implements channel.Runtime for manager tests.
type fakeRuntime struct {
	log     *eventLog
	joinErr error
	creates int
}

func (r *fakeRuntime) CreateChannel(url string) (channel.Conn, error) {
	r.creates++
	if r.log != nil {
		r.log.add("channel-create")
	}
	return &fakeConn{log: r.log, joinErr: r.joinErr}, nil
}

type fakeConn struct {
	log     *eventLog
	joinErr error
}

func (c *fakeConn) Join(ctx context.Context) error { return c.joinErr }

func (c *fakeConn) SendAppMessage(ctx context.Context, payload any) error { return nil }

func (c *fakeConn) Destroy() error {
	if c.log != nil {
		c.log.add("channel-destroy")
	}
	return nil
}

// tavusServer is a mock conversation-creation endpoint.
func tavusServer(t *testing.T, log *eventLog, status int, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if log != nil {
			log.add("create-session")
		}
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
}

func tavusCreds() provider.Credentials {
	return provider.Credentials{
		provider.FieldAPIKey:       "k",
		provider.FieldSessionLabel: "demo",
		provider.FieldReplicaID:    "r1",
	}
}

func TestStartVideoProviderAcquiresChannel(t *testing.T) {
	// Scenario A: video provider, embed-inline set.
	srv := tavusServer(t, nil, 200, `{"conversation_url":"https://x/y","conversation_id":"c1"}`)
	defer srv.Close()

	rt := &fakeRuntime{}
	m := NewManager(channel.NewController(rt), true)

	sess, err := m.Start(context.Background(), provider.NewTavusProvider(srv.URL, nil), tavusCreds())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if sess.EmbedURL != "https://x/y" {
		t.Errorf("EmbedURL = %q, want %q", sess.EmbedURL, "https://x/y")
	}

	snap := m.Snapshot()
	if snap.State != StateActive {
		t.Errorf("state = %s, want active", snap.State)
	}
	if rt.creates != 1 {
		t.Errorf("channel acquisitions = %d, want 1", rt.creates)
	}
	if !snap.HasChannel || snap.ChannelState != channel.StateJoined {
		t.Errorf("snapshot channel = %+v, want joined", snap)
	}
}

func TestStartProviderErrorSurfacesMessage(t *testing.T) {
	// Scenario B: provider rejects the key; state keeps the message but
	// the operator may retry immediately.
	srv := tavusServer(t, nil, 401, `{"message":"bad key"}`)
	defer srv.Close()

	rt := &fakeRuntime{}
	m := NewManager(channel.NewController(rt), true)

	_, err := m.Start(context.Background(), provider.NewTavusProvider(srv.URL, nil), tavusCreds())
	var perr *provider.ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if perr.Message != "bad key" {
		t.Errorf("Message = %q, want %q", perr.Message, "bad key")
	}

	snap := m.Snapshot()
	if snap.State != StateError || snap.LastError != "bad key" {
		t.Errorf("snapshot = %+v, want error state with message", snap)
	}
	if snap.Session != nil {
		t.Error("no session should be held after a failed creation")
	}
	if rt.creates != 0 {
		t.Error("no channel acquisition should be attempted on failure")
	}

	// Retry against a working endpoint succeeds from the Error state.
	ok := tavusServer(t, nil, 200, `{"conversation_url":"https://x/y","conversation_id":"c1"}`)
	defer ok.Close()
	if _, err := m.Start(context.Background(), provider.NewTavusProvider(ok.URL, nil), tavusCreds()); err != nil {
		t.Fatalf("retry Start: %v", err)
	}
	if got := m.Snapshot().State; got != StateActive {
		t.Errorf("state after retry = %s, want active", got)
	}
}

func TestStartVoiceProviderSkipsChannel(t *testing.T) {
	// Scenario C: voice provider lacks direct-channel support, so no
	// acquisition happens and dispatch relays manually.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"signed_url":"https://z"}`))
	}))
	defer srv.Close()

	rt := &fakeRuntime{}
	m := NewManager(channel.NewController(rt), true)

	creds := provider.Credentials{provider.FieldAPIKey: "k", provider.FieldAgentID: "a1"}
	sess, err := m.Start(context.Background(), provider.NewElevenLabsProvider(srv.URL, nil), creds)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if sess.EmbedURL != "https://z" {
		t.Errorf("EmbedURL = %q, want %q", sess.EmbedURL, "https://z")
	}
	if rt.creates != 0 {
		t.Errorf("channel acquisitions = %d, want 0 for voice provider", rt.creates)
	}

	clip := &fakeClipboard{}
	out, err := dispatch.NewWithClipboard(clip).Dispatch(context.Background(), m.DispatchTarget(), "hello")
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if out.Path != dispatch.PathManualRelay || !out.Success {
		t.Errorf("outcome = %+v, want successful manual relay", out)
	}
	if len(clip.texts) != 1 || clip.texts[0] != "hello" {
		t.Errorf("clipboard = %v, want [hello]", clip.texts)
	}
}

type fakeClipboard struct {
	texts []string
}

func (c *fakeClipboard) WriteAll(text string) error {
	c.texts = append(c.texts, text)
	return nil
}

func TestStartWithoutEmbedInlineSkipsChannel(t *testing.T) {
	srv := tavusServer(t, nil, 200, `{"conversation_url":"https://x/y","conversation_id":"c1"}`)
	defer srv.Close()

	rt := &fakeRuntime{}
	m := NewManager(channel.NewController(rt), false)

	if _, err := m.Start(context.Background(), provider.NewTavusProvider(srv.URL, nil), tavusCreds()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if rt.creates != 0 {
		t.Errorf("channel acquisitions = %d, want 0 without embed-inline", rt.creates)
	}
	if got := m.Snapshot().State; got != StateActive {
		t.Errorf("state = %s, want active", got)
	}
}

func TestChannelFailureDoesNotRevertSession(t *testing.T) {
	srv := tavusServer(t, nil, 200, `{"conversation_url":"https://x/y","conversation_id":"c1"}`)
	defer srv.Close()

	rt := &fakeRuntime{joinErr: errors.New("handshake timeout")}
	m := NewManager(channel.NewController(rt), true)
	m.warnf = func(string, ...any) {}

	if _, err := m.Start(context.Background(), provider.NewTavusProvider(srv.URL, nil), tavusCreds()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	snap := m.Snapshot()
	if snap.State != StateActive {
		t.Errorf("state = %s, want active despite channel failure", snap.State)
	}
	if snap.HasChannel {
		t.Error("no channel should be bound after a failed acquisition")
	}

	// Delivery falls back to manual relay.
	target := m.DispatchTarget()
	if target.Channel != nil {
		t.Error("dispatch target should carry no channel")
	}
	if !target.DirectCapable {
		t.Error("capability flag is static and stays true for the video provider")
	}
}

func TestReplaceDestroysChannelBeforeNewRequest(t *testing.T) {
	log := &eventLog{}
	srv := tavusServer(t, log, 200, `{"conversation_url":"https://x/y","conversation_id":"c1"}`)
	defer srv.Close()

	rt := &fakeRuntime{log: log}
	m := NewManager(channel.NewController(rt), true)
	p := provider.NewTavusProvider(srv.URL, nil)

	if _, err := m.Start(context.Background(), p, tavusCreds()); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if _, err := m.Start(context.Background(), p, tavusCreds()); err != nil {
		t.Fatalf("second Start: %v", err)
	}

	want := []string{"create-session", "channel-create", "channel-destroy", "create-session", "channel-create"}
	got := log.list()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events = %v, want %v", got, want)
		}
	}
}

func TestCloseTearsDownChannel(t *testing.T) {
	log := &eventLog{}
	srv := tavusServer(t, nil, 200, `{"conversation_url":"https://x/y","conversation_id":"c1"}`)
	defer srv.Close()

	rt := &fakeRuntime{log: log}
	m := NewManager(channel.NewController(rt), true)

	if _, err := m.Start(context.Background(), provider.NewTavusProvider(srv.URL, nil), tavusCreds()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	snap := m.Snapshot()
	if snap.State != StateIdle || snap.Session != nil || snap.HasChannel {
		t.Errorf("snapshot after close = %+v, want idle with nothing bound", snap)
	}

	got := log.list()
	if len(got) == 0 || got[len(got)-1] != "channel-destroy" {
		t.Errorf("events = %v, want trailing channel-destroy", got)
	}
}

// blockingProvider parks CreateSession until released, to exercise the
// single-in-flight guard.
type blockingProvider struct {
	release chan struct{}
}

func (p *blockingProvider) CreateSession(ctx context.Context, creds provider.Credentials) (*provider.Session, error) {
	<-p.release
	return &provider.Session{ID: "c1", Provider: p.Name(), EmbedURL: "https://x/y", CreatedAt: time.Now()}, nil
}

func (p *blockingProvider) Name() string                { return "blocking" }
func (p *blockingProvider) SupportsDirectChannel() bool { return false }
func (p *blockingProvider) RequiredFields() []string    { return nil }

func TestStartRejectsParallelRequests(t *testing.T) {
	m := NewManager(channel.NewController(nil), false)
	p := &blockingProvider{release: make(chan struct{})}

	done := make(chan error, 1)
	go func() {
		_, err := m.Start(context.Background(), p, nil)
		done <- err
	}()

	// Wait for the first request to enter Requesting.
	deadline := time.After(2 * time.Second)
	for m.Snapshot().State != StateRequesting {
		select {
		case <-deadline:
			t.Fatal("manager never entered requesting state")
		case <-time.After(time.Millisecond):
		}
	}

	if _, err := m.Start(context.Background(), p, nil); !errors.Is(err, ErrRequestInFlight) {
		t.Errorf("second Start error = %v, want ErrRequestInFlight", err)
	}
	if err := m.Close(); !errors.Is(err, ErrRequestInFlight) {
		t.Errorf("Close during requesting = %v, want ErrRequestInFlight", err)
	}

	close(p.release)
	if err := <-done; err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if got := m.Snapshot().State; got != StateActive {
		t.Errorf("state = %s, want active", got)
	}
}
