//go:generate go run go.uber.org/mock/mockgen -source=host.go -destination=../mocks/mock_host.go -package=mocks

// Package host declares the surface of the third-party conferencing
// client this companion observes. The client itself (protocol, media
// pipeline, rendering) is a black box; everything here is read-only
// except the single-slot close handler on the transport.
package host

import "context"

// ReadyState mirrors the transport's socket-style lifecycle.
type ReadyState int

const (
	StateConnecting ReadyState = iota
	StateOpen
	StateClosing
	StateClosed
)

// Close codes reported by the transport. CloseNormal is the only code
// that counts as a deliberate logout; everything else is treated as a
// transient failure that permits silent reconnection.
const (
	CloseNormal   = 1000
	CloseAbnormal = 1006
)

// Transport is the socket-like object underneath the host connection.
// It exposes a single-slot close callback: installing a handler
// replaces whatever was there before, so cooperating observers must
// chain rather than subscribe.
type Transport interface {
	ReadyState() ReadyState
	CloseHandler() func(code int, reason string)
	SetCloseHandler(fn func(code int, reason string))
}

// Connection is the host client's exposed connection object.
// Permissions may change at the host's discretion at any time; there is
// no change notification, callers poll.
type Connection interface {
	Permissions() []string
	Transport() Transport
}

// Provider resolves the current connection object, or nil while the
// host client has not finished initializing.
type Provider func() Connection

// MediaConstraints selects which device kinds an acquisition wants.
type MediaConstraints struct {
	Audio bool
	Video bool
}

// MediaStream is an acquired device stream, opaque to the companion.
type MediaStream interface {
	ID() string
	Close() error
}

// DeviceAcquirer is the host's device-acquisition entry point.
type DeviceAcquirer func(ctx context.Context, constraints MediaConstraints) (MediaStream, error)

// ChainCloseHandler installs fn on the transport's single close slot,
// preserving any previously installed handler: fn runs first, then the
// prior handler is delegated to unchanged. This keeps handlers the host
// or other customization installed earlier alive.
func ChainCloseHandler(t Transport, fn func(code int, reason string)) {
	previous := t.CloseHandler()
	t.SetCloseHandler(func(code int, reason string) {
		fn(code, reason)
		if previous != nil {
			previous(code, reason)
		}
	})
}

// staticConnection pairs a transport with a permission source. Used by
// embedders whose permission set comes from outside the transport.
type staticConnection struct {
	transport   Transport
	permissions func() []string
}

// NewConnection builds a Connection from a transport and a permission
// source. The permissions func is consulted on every call.
func NewConnection(t Transport, permissions func() []string) Connection {
	return &staticConnection{transport: t, permissions: permissions}
}

func (c *staticConnection) Permissions() []string {
	if c.permissions == nil {
		return nil
	}
	return c.permissions()
}

func (c *staticConnection) Transport() Transport {
	return c.transport
}
