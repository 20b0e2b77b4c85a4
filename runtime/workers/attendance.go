package workers

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"galene-companion/domain"
	"galene-companion/host"
	"galene-companion/runtime"
	"galene-companion/sink"
)

// TokenSource reads the session-scoped credential mirror.
type TokenSource interface {
	SessionToken() (string, bool)
}

// Tracker is the attendance state machine: Idle until a join is
// tracked, Joined until the matching leave. At most one join and one
// matching leave are emitted per tracker lifetime segment; heartbeats
// run only while joined. All state lives on the instance so the
// machine is testable without global reset.
type Tracker struct {
	log             *slog.Logger
	reliable        sink.Sender
	bestEffort      sink.Sender
	token           TokenSource
	heartbeatPeriod time.Duration
	now             func() time.Time

	mu            sync.Mutex
	hasJoined     bool
	stopHeartbeat context.CancelFunc
}

// NewTracker wires the two delivery channels. reliable may be nil when
// the runtime offers no such primitive; boundary events then fall back
// silently to the best-effort channel.
func NewTracker(reliable, bestEffort sink.Sender, token TokenSource, heartbeatPeriod time.Duration, log *slog.Logger) *Tracker {
	return &Tracker{
		log:             log,
		reliable:        reliable,
		bestEffort:      bestEffort,
		token:           token,
		heartbeatPeriod: heartbeatPeriod,
		now:             time.Now,
	}
}

// TrackJoin transitions Idle -> Joined: emits one join event on the
// reliable channel and starts the heartbeat recurrence. A second call
// while joined is a no-op.
func (t *Tracker) TrackJoin(ctx context.Context) {
	t.mu.Lock()
	if t.hasJoined {
		t.mu.Unlock()
		t.log.Debug("Join already tracked")
		return
	}
	t.hasJoined = true
	heartbeatCtx, cancel := context.WithCancel(ctx)
	t.stopHeartbeat = cancel
	t.mu.Unlock()

	t.log.Info("Tracking session join")
	t.emit(ctx, domain.EventJoin, t.boundary())
	go t.heartbeatLoop(heartbeatCtx)
}

// TrackLeave transitions Joined -> Idle: emits one leave event on the
// reliable channel, cancels the heartbeat recurrence and resets the
// join flag. Every leave path (transport close, shutdown) converges
// here; calling it while idle is a no-op.
func (t *Tracker) TrackLeave() {
	t.mu.Lock()
	if !t.hasJoined {
		t.mu.Unlock()
		return
	}
	t.hasJoined = false
	stop := t.stopHeartbeat
	t.stopHeartbeat = nil
	t.mu.Unlock()

	if stop != nil {
		stop()
	}
	t.log.Info("Tracking session leave")
	// The surrounding context may already be tearing down; the
	// reliable channel detaches itself.
	t.emit(context.Background(), domain.EventLeave, t.boundary())
}

// ObserveHidden records that the host reports a hidden/backgrounded
// state. Deliberately not a leave: backgrounding is not departure.
// Whether attendance should eventually time out server-side after a
// long hidden period is a backend policy question, not decided here.
func (t *Tracker) ObserveHidden() {
	t.log.Debug("Host reports hidden state, attendance unchanged")
}

// State reports (hasJoined, heartbeatActive) for diagnostics.
func (t *Tracker) State() (bool, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.hasJoined, t.stopHeartbeat != nil
}

func (t *Tracker) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(t.heartbeatPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// WithoutCancel keeps an in-flight heartbeat alive while
			// the recurrence itself is being torn down.
			t.emit(context.WithoutCancel(ctx), domain.EventHeartbeat, t.bestEffort)
		}
	}
}

// emit sends one attendance event. A missing session token downgrades
// to a warning and the event is skipped: missing telemetry must never
// block the session. Delivery failures are logged and never retried.
func (t *Tracker) emit(ctx context.Context, eventType domain.EventType, sender sink.Sender) {
	token, ok := t.token.SessionToken()
	if !ok {
		t.log.Warn("Skipping attendance event, no session token", "event", string(eventType))
		return
	}
	event := domain.NewAttendanceEvent(eventType, token, t.now())
	if err := sender.Send(ctx, event); err != nil {
		t.log.Warn("Attendance delivery failed", "event", string(eventType), "err", err)
	}
}

func (t *Tracker) boundary() sink.Sender {
	if t.reliable != nil {
		return t.reliable
	}
	return t.bestEffort
}

// CloseHook runs after the tracker has recorded a leave for a
// transport close, with the transport's close code. The token
// lifecycle manager hangs its logout policy here.
type CloseHook func(code int, reason string)

// JoinWatcher polls the host transport for an open state and arms the
// tracker: one join on detection, then a wrapper on the transport's
// single-slot close handler so a leave is recorded before whatever
// handler was installed earlier runs.
type JoinWatcher struct {
	log      *slog.Logger
	provider host.Provider
	tracker  *Tracker
	onClose  CloseHook
	interval time.Duration
	window   time.Duration
}

func NewJoinWatcher(provider host.Provider, tracker *Tracker, onClose CloseHook, interval, window time.Duration, log *slog.Logger) *JoinWatcher {
	return &JoinWatcher{
		log:      log,
		provider: provider,
		tracker:  tracker,
		onClose:  onClose,
		interval: interval,
		window:   window,
	}
}

// Run blocks until the transport opens, the window elapses, or ctx is
// canceled. The poll self-cancels in every case.
func (w *JoinWatcher) Run(ctx context.Context) error {
	detector := runtime.NewSingleShotDetector(
		w.log,
		"join-detector",
		w.interval,
		w.window,
		func() (any, bool) {
			conn := w.provider()
			if conn == nil {
				return nil, false
			}
			transport := conn.Transport()
			if transport == nil || transport.ReadyState() != host.StateOpen {
				return nil, false
			}
			return transport, true
		},
		func(value any) {
			transport := value.(host.Transport)
			w.tracker.TrackJoin(ctx)
			host.ChainCloseHandler(transport, func(code int, reason string) {
				w.log.Info("Transport closed", "code", code, "reason", reason)
				w.tracker.TrackLeave()
				if w.onClose != nil {
					w.onClose(code, reason)
				}
			})
		},
	)
	return detector.Run(ctx)
}
