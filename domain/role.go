// Package domain contains core concepts of the session companion.
// This file defines permission tiers and the classification rule.
// No runtime, network, or UI logic should be added here.
package domain

import "github.com/samber/lo"

// Permission strings exposed by the host connection object.
// The set is owned by the host; anything outside these three is ignored.
const (
	PermissionOp      = "op"
	PermissionPresent = "present"
	PermissionObserve = "observe"
)

// Role is the discrete permission tier derived from the host's
// permission set. It is recomputed on demand and never stored durably.
type Role int

const (
	// RoleObserver is the fail-closed default: no recognized
	// permission grants anything beyond watching.
	RoleObserver Role = iota
	RolePresenter
	RoleOperator
)

// Classify derives a Role from the host permission set.
// Highest privilege wins: op > present > observe. An empty set or a set
// containing only unrecognized strings yields RoleObserver.
func Classify(permissions []string) Role {
	switch {
	case lo.Contains(permissions, PermissionOp):
		return RoleOperator
	case lo.Contains(permissions, PermissionPresent):
		return RolePresenter
	default:
		return RoleObserver
	}
}

// NeedsMedia reports whether the role requires camera/microphone access.
func (r Role) NeedsMedia() bool {
	return r != RoleObserver
}

// Marker returns the class applied to the page root for this role.
func (r Role) Marker() string {
	switch r {
	case RoleOperator:
		return "permission-op"
	case RolePresenter:
		return "permission-present"
	default:
		return "permission-observe"
	}
}

// Markers lists every role marker, used to strip stale ones before
// applying the current role.
func Markers() []string {
	return []string{"permission-op", "permission-present", "permission-observe"}
}

func (r Role) String() string {
	switch r {
	case RoleOperator:
		return "operator"
	case RolePresenter:
		return "presenter"
	default:
		return "observer"
	}
}
