package e2e

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"galene-companion/auth"
	companionerrors "galene-companion/errors"
	"galene-companion/host"
	"galene-companion/observability"
	"galene-companion/repositories"
	"galene-companion/runtime/workers"
	"galene-companion/services"
	"galene-companion/sink"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

type recordedEvent struct {
	EventType string `json:"eventType"`
	Token     string `json:"token"`
	Timestamp int64  `json:"timestamp"`
}

type backend struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (b *backend) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var event recordedEvent
		if err := json.Unmarshal(body, &event); err == nil {
			b.mu.Lock()
			b.events = append(b.events, event)
			b.mu.Unlock()
		}
	}
}

func (b *backend) ofType(eventType string) []recordedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []recordedEvent
	for _, event := range b.events {
		if event.EventType == eventType {
			out = append(out, event)
		}
	}
	return out
}

type scriptedTransport struct {
	mu      sync.Mutex
	state   host.ReadyState
	handler func(code int, reason string)
}

func (s *scriptedTransport) ReadyState() host.ReadyState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *scriptedTransport) open() {
	s.mu.Lock()
	s.state = host.StateOpen
	s.mu.Unlock()
}

func (s *scriptedTransport) CloseHandler() func(code int, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handler
}

func (s *scriptedTransport) SetCloseHandler(fn func(code int, reason string)) {
	s.mu.Lock()
	s.handler = fn
	s.mu.Unlock()
}

func (s *scriptedTransport) close(code int, reason string) {
	s.mu.Lock()
	s.state = host.StateClosed
	handler := s.handler
	s.mu.Unlock()
	if handler != nil {
		handler(code, reason)
	}
}

// Test_Full_Session_Lifecycle drives a complete session: stale stored
// token overridden by a fresh launch token, classification applied,
// join detected, heartbeats flowing, leave on normal close, and the
// stored credential cleared because the closure was deliberate.
func Test_Full_Session_Lifecycle(t *testing.T) {
	req := require.New(t)
	cfg, err := LoadConfig()
	req.NoError(err)
	log := slog.Default()

	attendance := &backend{}
	server := httptest.NewServer(attendance.handler())
	defer server.Close()

	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	defer db.Close()

	// Stale credential from an earlier session, fresh one in the URL.
	store := repositories.NewTokenRepository(db, log)
	req.NoError(store.Save("OLD"))
	launch, err := host.ParseLaunchState("token=NEW&group=lecture")
	req.NoError(err)

	tokens := auth.NewManager(store, launch, log)
	token, ok := tokens.Init()
	req.True(ok)
	req.Equal("NEW", token)
	stored, err := store.Load()
	req.NoError(err)
	req.Equal("NEW", stored, "capture must override restore")

	// Host comes up connecting, with presenter permissions.
	transport := &scriptedTransport{state: host.StateConnecting}
	conn := host.NewConnection(transport, func() []string { return []string{"present", "observe"} })
	provider := host.Provider(func() host.Connection { return conn })

	root := host.NewStateRoot()
	classifier := services.NewClassifier(provider, root, log)
	req.True(classifier.PollAndApply())
	req.True(root.Has("permission-present"))

	reliable := sink.NewReliableSink(server.URL, cfg.SendTimeout, log)
	bestEffort := sink.NewBestEffortSink(server.URL, cfg.SendTimeout, log)
	tracker := workers.NewTracker(reliable, bestEffort, tokens, cfg.HeartbeatPeriod, log)
	watcher := workers.NewJoinWatcher(provider, tracker, tokens.HandleClose,
		cfg.PollInterval, cfg.PollWindow, log)

	diag := observability.NewManager(log)
	tokens.RegisterDiagnostics(diag.Registry())
	diag.SetSources(observability.Sources{
		Attendance:       tracker.State,
		TokenFingerprint: tokens.SessionFingerprint,
	})

	done := make(chan error, 1)
	go func() { done <- watcher.Run(context.Background()) }()

	time.Sleep(3 * cfg.PollInterval)
	transport.open()
	req.NoError(<-done)

	joins := attendance.ofType("join")
	req.Len(joins, 1)
	req.Equal("NEW", joins[0].Token)

	// Backgrounding is observed but never a departure.
	tracker.ObserveHidden()

	req.Eventually(func() bool {
		return len(attendance.ofType("heartbeat")) >= 2
	}, 2*time.Second, cfg.PollInterval, "heartbeats must flow while joined")

	snap := diag.Snapshot()
	req.True(snap.HasJoined)
	req.True(snap.HeartbeatActive)

	// Normal close: leave emitted, recurrence stopped, token cleared.
	transport.close(host.CloseNormal, "going away")

	leaves := attendance.ofType("leave")
	req.Len(leaves, 1)
	req.Equal("NEW", leaves[0].Token)
	_, err = store.Load()
	req.ErrorIs(err, companionerrors.ErrNoStoredToken)

	beats := len(attendance.ofType("heartbeat"))
	time.Sleep(3 * cfg.HeartbeatPeriod)
	req.Equal(beats, len(attendance.ofType("heartbeat")), "heartbeat must stop on leave")

	snap = diag.Snapshot()
	req.False(snap.HasJoined)
	req.False(snap.HeartbeatActive)

	if cfg.DebugJSON {
		attendance.mu.Lock()
		raw, _ := json.MarshalIndent(attendance.events, "", "  ")
		attendance.mu.Unlock()
		t.Logf("attendance events:\n%s", raw)
	}
}

// Test_Abnormal_Close_Keeps_Token covers the reconnection path: a
// non-1000 close records the leave but leaves the credential intact.
func Test_Abnormal_Close_Keeps_Token(t *testing.T) {
	req := require.New(t)
	cfg, err := LoadConfig()
	req.NoError(err)
	log := slog.Default()

	attendance := &backend{}
	server := httptest.NewServer(attendance.handler())
	defer server.Close()

	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	defer db.Close()

	store := repositories.NewTokenRepository(db, log)
	launch, err := host.ParseLaunchState("token=abc123")
	req.NoError(err)
	tokens := auth.NewManager(store, launch, log)
	tokens.Init()

	transport := &scriptedTransport{state: host.StateOpen}
	conn := host.NewConnection(transport, func() []string { return []string{"observe"} })

	reliable := sink.NewReliableSink(server.URL, cfg.SendTimeout, log)
	bestEffort := sink.NewBestEffortSink(server.URL, cfg.SendTimeout, log)
	tracker := workers.NewTracker(reliable, bestEffort, tokens, cfg.HeartbeatPeriod, log)
	watcher := workers.NewJoinWatcher(
		func() host.Connection { return conn },
		tracker, tokens.HandleClose, cfg.PollInterval, cfg.PollWindow, log)

	req.NoError(watcher.Run(context.Background()))
	transport.close(host.CloseAbnormal, "network lost")

	req.Len(attendance.ofType("leave"), 1)
	stored, err := store.Load()
	req.NoError(err)
	req.Equal("abc123", stored, "abnormal close must keep the token for reconnection")
}
