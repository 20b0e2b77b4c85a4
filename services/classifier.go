// Package services holds the companion's application logic: reflecting
// the classified role into observable state and gating media access.
package services

import (
	"log/slog"
	"sync"
	"time"

	"galene-companion/domain"
	"galene-companion/host"
	"galene-companion/runtime"
)

// Classifier derives the permission tier from the host connection and
// reflects it onto the state root. It is the only writer of the role
// markers.
type Classifier struct {
	log      *slog.Logger
	provider host.Provider
	root     *host.StateRoot

	mu         sync.Mutex
	applied    domain.Role
	hasApplied bool
}

func NewClassifier(provider host.Provider, root *host.StateRoot, log *slog.Logger) *Classifier {
	return &Classifier{log: log, provider: provider, root: root}
}

// ApplyRole replaces any previously applied role marker with exactly
// one marker for role. Idempotent and side-effect-free when the role
// is unchanged.
func (c *Classifier) ApplyRole(role domain.Role) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hasApplied && c.applied == role {
		return
	}
	for _, marker := range domain.Markers() {
		c.root.Remove(marker)
	}
	c.root.Add(role.Marker())
	c.applied = role
	c.hasApplied = true
	c.log.Info("Applied role", "role", role.String(), "marker", role.Marker())
}

// PollAndApply classifies and applies once. Returns false while the
// host connection is not available yet; safe to call repeatedly.
func (c *Classifier) PollAndApply() bool {
	conn := c.provider()
	if conn == nil {
		return false
	}
	c.ApplyRole(domain.Classify(conn.Permissions()))
	return true
}

// Current returns the last applied role. ok is false before the first
// successful application.
func (c *Classifier) Current() (domain.Role, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.applied, c.hasApplied
}

// Watcher returns the bounded re-classification poller. The host has
// no permission-change notification, so the role is re-derived every
// interval; after the window permissions are assumed stable and a
// later change goes unseen until restart. Documented limitation, not
// an accident.
func (c *Classifier) Watcher(interval, window time.Duration) *runtime.Detector {
	return runtime.NewDetector(
		c.log,
		"permission-classifier",
		interval,
		window,
		func() (any, bool) {
			conn := c.provider()
			if conn == nil {
				return nil, false
			}
			return domain.Classify(conn.Permissions()), true
		},
		func(previous, next any) bool {
			return previous == next
		},
		func(value any) {
			c.ApplyRole(value.(domain.Role))
		},
	)
}
