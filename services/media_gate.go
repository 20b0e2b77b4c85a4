package services

import (
	"context"
	"fmt"
	"log/slog"

	"galene-companion/domain"
	"galene-companion/errors"
	"galene-companion/host"
)

// RoleSource reads the currently classified role. ok is false before
// any classification ran.
type RoleSource func() (domain.Role, bool)

// MediaGate wraps the host's device-acquisition entry point. Observers
// are rejected before any hardware is touched; every other role passes
// through unchanged. The role is read at call time, never cached at
// install time, so a promoted observer gains access without the gate
// being reinstalled.
type MediaGate struct {
	log     *slog.Logger
	role    RoleSource
	acquire host.DeviceAcquirer
}

func NewMediaGate(role RoleSource, acquire host.DeviceAcquirer, log *slog.Logger) *MediaGate {
	return &MediaGate{log: log, role: role, acquire: acquire}
}

// Acquire gates a device-acquisition request. An unclassified session
// counts as observer (fail-closed).
func (g *MediaGate) Acquire(ctx context.Context, constraints host.MediaConstraints) (host.MediaStream, error) {
	role, ok := g.role()
	if !ok {
		role = domain.RoleObserver
	}
	if !role.NeedsMedia() {
		g.log.Info("Blocked device acquisition", "role", role.String())
		return nil, fmt.Errorf("%w (role %s)", errors.ErrMediaNotAllowed, role)
	}
	return g.acquire(ctx, constraints)
}

// Acquirer returns the gated entry point in the host's own shape, for
// installation in place of the original.
func (g *MediaGate) Acquirer() host.DeviceAcquirer {
	return g.Acquire
}
