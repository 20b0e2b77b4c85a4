package internal

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"galene-companion/observability"

	"github.com/olekukonko/tablewriter"
)

// StartDebugServer serves the diagnostics registry over HTTP for
// operators: a rendered snapshot at /debug/attendance, and named
// diagnostic invocation at /debug/diag?fn=<name>. The returned server
// is shut down by the caller.
func StartDebugServer(manager *observability.Manager, port int, log *slog.Logger) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/debug/attendance", func(w http.ResponseWriter, r *http.Request) {
		snap := manager.Snapshot()
		table := tablewriter.NewWriter(w)
		table.SetHeader([]string{"Field", "Value"})
		table.Append([]string{"session_id", snap.SessionID})
		table.Append([]string{"role", snap.Role})
		table.Append([]string{"role_applied", strconv.FormatBool(snap.RoleApplied)})
		table.Append([]string{"connection_present", strconv.FormatBool(snap.ConnectionPresent)})
		table.Append([]string{"has_joined", strconv.FormatBool(snap.HasJoined)})
		table.Append([]string{"heartbeat_active", strconv.FormatBool(snap.HeartbeatActive)})
		table.Append([]string{"token_fingerprint", snap.TokenFingerprint})
		table.Append([]string{"ram_bytes", strconv.FormatUint(snap.RamBytes, 10)})
		table.Append([]string{"cpu_percent", fmt.Sprintf("%.2f", snap.CPUPercent)})
		table.Render()
	})

	mux.HandleFunc("/debug/diag", func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("fn")
		if name == "" {
			for _, n := range manager.Registry().Names() {
				fmt.Fprintln(w, n)
			}
			return
		}
		out, err := manager.Registry().Invoke(name)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		fmt.Fprintln(w, out)
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Debug server failed", "err", err)
		}
	}()
	log.Info("Debug server listening", "port", port)
	return srv
}
