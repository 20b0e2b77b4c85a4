// Package observability exposes the companion's internals for manual
// inspection: a registry of diagnostic functions retrievable by name,
// and a snapshot aggregating role, connection and attendance state.
package observability

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/process"
)

// DumpName is the fixed name the full state dump is registered under.
const DumpName = "attendanceDebug"

// DiagnosticFunc is a manually invokable diagnostic. The returned
// string is meant for humans, not for machines.
type DiagnosticFunc func() (string, error)

// Registry holds named diagnostics so operators can trigger them
// without any wiring into the running components.
type Registry struct {
	mu  sync.RWMutex
	fns map[string]DiagnosticFunc
}

func NewRegistry() *Registry {
	return &Registry{fns: make(map[string]DiagnosticFunc)}
}

// Register makes fn retrievable by name, replacing any prior entry.
func (r *Registry) Register(name string, fn DiagnosticFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fns[name] = fn
}

// Invoke runs the named diagnostic.
func (r *Registry) Invoke(name string) (string, error) {
	r.mu.RLock()
	fn, ok := r.fns[name]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("unknown diagnostic %q", name)
	}
	return fn()
}

// Names lists registered diagnostics in stable order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.fns))
	for name := range r.fns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot aggregates everything an operator needs to judge the
// session at a glance.
type Snapshot struct {
	SessionID         string  `json:"session_id"`
	Role              string  `json:"role"`
	RoleApplied       bool    `json:"role_applied"`
	ConnectionPresent bool    `json:"connection_present"`
	HasJoined         bool    `json:"has_joined"`
	HeartbeatActive   bool    `json:"heartbeat_active"`
	TokenFingerprint  string  `json:"token_fingerprint,omitempty"`
	Pid               int     `json:"pid"`
	RamBytes          uint64  `json:"ram_bytes"`
	CPUPercent        float64 `json:"cpu_percent"`
}

// Sources are the live state readers the snapshot pulls from. Absent
// readers simply leave their fields zeroed; diagnostics never fail
// because a component is not wired yet.
type Sources struct {
	Role             func() (string, bool)
	Connection       func() bool
	Attendance       func() (hasJoined, heartbeatActive bool)
	TokenFingerprint func() string
}

// Manager owns the registry and assembles snapshots on demand.
type Manager struct {
	log       *slog.Logger
	sessionID string
	registry  *Registry

	mu      sync.RWMutex
	sources Sources

	proc *process.Process
}

func NewManager(log *slog.Logger) *Manager {
	m := &Manager{
		log:       log,
		sessionID: uuid.New().String(),
		registry:  NewRegistry(),
	}
	// Self stats are best-effort; a failure here only blanks the
	// process columns of the dump.
	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		m.proc = p
	} else {
		log.Warn("Process self stats unavailable", "err", err)
	}
	m.registry.Register(DumpName, m.dump)
	return m
}

func (m *Manager) SessionID() string {
	return m.sessionID
}

func (m *Manager) Registry() *Registry {
	return m.registry
}

// SetSources wires the live state readers. Safe to call again as
// components come up.
func (m *Manager) SetSources(sources Sources) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sources = sources
}

// Snapshot assembles the current state. Never blocks on the host.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	sources := m.sources
	m.mu.RUnlock()

	snap := Snapshot{SessionID: m.sessionID, Pid: os.Getpid()}
	if sources.Role != nil {
		snap.Role, snap.RoleApplied = sources.Role()
	}
	if sources.Connection != nil {
		snap.ConnectionPresent = sources.Connection()
	}
	if sources.Attendance != nil {
		snap.HasJoined, snap.HeartbeatActive = sources.Attendance()
	}
	if sources.TokenFingerprint != nil {
		snap.TokenFingerprint = sources.TokenFingerprint()
	}
	if m.proc != nil {
		if memInfo, err := m.proc.MemoryInfo(); err == nil {
			snap.RamBytes = memInfo.RSS
		}
		if cpu, err := m.proc.CPUPercent(); err == nil {
			snap.CPUPercent = cpu
		}
	}
	return snap
}

// dump renders the snapshot as JSON for the diagnostics registry.
func (m *Manager) dump() (string, error) {
	data, err := json.MarshalIndent(m.Snapshot(), "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}
	return string(data), nil
}
