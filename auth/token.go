// Package auth owns the credential while it lives in the companion:
// capture from launch parameters, durable storage, the session-scoped
// mirror attendance events read from, and clearing on normal logout.
package auth

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"

	"galene-companion/host"
	"galene-companion/observability"
	"galene-companion/repositories"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/blake2b"
)

// QueryParam is the launch parameter the credential arrives under.
const QueryParam = "token"

// Names the token operations are registered under for manual
// invocation through the diagnostics registry.
const (
	DiagGetToken     = "getStoredToken"
	DiagClearToken   = "clearStoredToken"
	DiagRestoreToken = "restoreToken"
)

// Manager is the token lifecycle manager. It must run before the host
// client reads its launch parameters: Restore rewrites them in place.
type Manager struct {
	log    *slog.Logger
	store  repositories.ITokenRepository
	launch *host.LaunchState

	mu      sync.Mutex
	session string
}

func NewManager(store repositories.ITokenRepository, launch *host.LaunchState, log *slog.Logger) *Manager {
	return &Manager{log: log, store: store, launch: launch}
}

// Init runs Restore then Capture. Capture wins: a token in the
// incoming launch parameters is a fresh login and must overwrite
// whatever an earlier session left in storage, so multi-tab or
// shared-link logins are never shadowed by stale state.
func (m *Manager) Init() (string, bool) {
	restored, hasRestored := m.Restore()
	captured, hasCaptured := m.Capture()
	if hasCaptured {
		return captured, true
	}
	return restored, hasRestored
}

// Restore injects the stored credential into the launch parameters so
// the host client can authenticate without user interaction. Returns
// the token when one was stored.
func (m *Manager) Restore() (string, bool) {
	token, err := m.store.Load()
	if err != nil {
		m.log.Debug("No token to restore", "err", err)
		return "", false
	}
	// A token already present in the incoming launch parameters is a
	// fresh login; it must not be shadowed by stored state.
	if m.launch.Get(QueryParam) == "" {
		m.launch.Set(QueryParam, token)
	}
	m.setSession(token)
	m.log.Info("Restored token into launch parameters", "fingerprint", Fingerprint(token))
	return token, true
}

// Capture reads a credential from the launch parameters and persists
// it, overwriting any prior value.
func (m *Manager) Capture() (string, bool) {
	token := m.launch.Get(QueryParam)
	if token == "" {
		return "", false
	}
	if err := m.store.Save(token); err != nil {
		// Persistence failure degrades reload behavior only; the
		// current session keeps its in-memory mirror.
		m.log.Error("Failed to persist captured token", "err", err)
	}
	m.setSession(token)
	m.inspect(token)
	return token, true
}

// Clear removes the stored credential and the session mirror.
// Idempotent: clearing an already clean state is a no-op.
func (m *Manager) Clear() error {
	m.mu.Lock()
	m.session = ""
	m.mu.Unlock()
	if err := m.store.Delete(); err != nil {
		return fmt.Errorf("clearing token: %w", err)
	}
	m.log.Info("Cleared stored token")
	return nil
}

// HandleClose applies the logout policy for a transport close. Only a
// normal closure clears the credential; abnormal closures keep it so
// the host client can silently reconnect.
func (m *Manager) HandleClose(code int, reason string) {
	if code != host.CloseNormal {
		m.log.Info("Abnormal close, keeping token for reconnection", "code", code, "reason", reason)
		return
	}
	if err := m.Clear(); err != nil {
		m.log.Error("Failed to clear token on disconnect", "err", err)
	}
}

// SessionToken returns the session-scoped mirror. Attendance events
// read this, never the durable store.
func (m *Manager) SessionToken() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session, m.session != ""
}

// SessionFingerprint is the loggable identity of the session token.
func (m *Manager) SessionFingerprint() string {
	token, ok := m.SessionToken()
	if !ok {
		return ""
	}
	return Fingerprint(token)
}

// RegisterDiagnostics exposes the token operations by name for manual
// invocation.
func (m *Manager) RegisterDiagnostics(registry *observability.Registry) {
	registry.Register(DiagGetToken, func() (string, error) {
		token, err := m.store.Load()
		if err != nil {
			return "", err
		}
		return Fingerprint(token), nil
	})
	registry.Register(DiagClearToken, func() (string, error) {
		if err := m.Clear(); err != nil {
			return "", err
		}
		return "cleared", nil
	})
	registry.Register(DiagRestoreToken, func() (string, error) {
		token, ok := m.Restore()
		if !ok {
			return "no stored token", nil
		}
		return Fingerprint(token), nil
	})
}

func (m *Manager) setSession(token string) {
	m.mu.Lock()
	m.session = token
	m.mu.Unlock()
}

// inspect logs claim-level facts about a captured JWT without
// validating it; validation is the backend's job and the token stays
// opaque to the companion. Non-JWT credentials are silently accepted.
func (m *Manager) inspect(token string) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		m.log.Debug("Captured token is not a JWT", "fingerprint", Fingerprint(token))
		return
	}
	attrs := []any{"fingerprint", Fingerprint(token)}
	if subject, err := parsed.Claims.GetSubject(); err == nil && subject != "" {
		attrs = append(attrs, "subject", subject)
	}
	if expires, err := parsed.Claims.GetExpirationTime(); err == nil && expires != nil {
		attrs = append(attrs, "expires", expires.Time)
	}
	m.log.Info("Captured token", attrs...)
}

// Fingerprint derives a short stable digest for logs and diagnostics.
// The raw credential must never appear in either.
func Fingerprint(token string) string {
	sum := blake2b.Sum256([]byte(token))
	return hex.EncodeToString(sum[:6])
}
