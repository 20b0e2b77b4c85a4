package host

import (
	"sync"

	"github.com/pion/webrtc/v4"
)

// Compile-time interface check.
var _ Transport = (*PeerConnectionTransport)(nil)

// PeerConnectionTransport adapts a pion PeerConnection to the Transport
// surface, for embedders whose host client rides directly on WebRTC.
// The peer connection state maps onto socket-style ready states, and
// terminal states fire the single-slot close handler exactly once.
type PeerConnectionTransport struct {
	pc *webrtc.PeerConnection

	mu           sync.Mutex
	closeHandler func(code int, reason string)
	closed       bool
}

// NewPeerConnectionTransport wraps pc. The caller keeps ownership of
// the peer connection; the adapter only observes its state.
func NewPeerConnectionTransport(pc *webrtc.PeerConnection) *PeerConnectionTransport {
	t := &PeerConnectionTransport{pc: pc}
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		switch state {
		case webrtc.PeerConnectionStateClosed:
			t.fireClose(CloseNormal, state.String())
		case webrtc.PeerConnectionStateFailed:
			t.fireClose(CloseAbnormal, state.String())
		}
	})
	return t
}

func (t *PeerConnectionTransport) ReadyState() ReadyState {
	switch t.pc.ConnectionState() {
	case webrtc.PeerConnectionStateConnected:
		return StateOpen
	case webrtc.PeerConnectionStateDisconnected:
		return StateClosing
	case webrtc.PeerConnectionStateClosed, webrtc.PeerConnectionStateFailed:
		return StateClosed
	default:
		return StateConnecting
	}
}

func (t *PeerConnectionTransport) CloseHandler() func(code int, reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closeHandler
}

func (t *PeerConnectionTransport) SetCloseHandler(fn func(code int, reason string)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closeHandler = fn
}

// fireClose invokes the installed close handler at most once, no
// matter how many terminal state transitions pion reports.
func (t *PeerConnectionTransport) fireClose(code int, reason string) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	handler := t.closeHandler
	t.mu.Unlock()

	if handler != nil {
		handler(code, reason)
	}
}
