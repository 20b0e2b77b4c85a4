package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"galene-companion/auth"
	"galene-companion/host"
	"galene-companion/internal"
	"galene-companion/observability"
	"galene-companion/repositories"
	"galene-companion/runtime/workers"
	"galene-companion/services"
	"galene-companion/sink"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"
	"github.com/pion/webrtc/v4"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the session lifecycle, and
// centralizes error reporting so deferred cleanup always executes.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return err
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Durable store (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.ERROR))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Token lifecycle. This must complete before the host client is
	// attached: Restore rewrites the launch parameters the host reads.
	launch, err := host.ParseLaunchState(config.LaunchQuery)
	if err != nil {
		return fmt.Errorf("parsing launch query: %w", err)
	}
	store := repositories.NewTokenRepository(db, log)
	tokens := auth.NewManager(store, launch, log)
	if _, ok := tokens.Init(); !ok {
		log.Warn("No credential at startup, attendance events will be skipped")
	}

	// 4. Host client attach. The companion only observes the host; here
	// the transport rides on a WebRTC peer connection and the permission
	// set comes from the environment until the embedding host feeds it.
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return fmt.Errorf("creating peer connection: %w", err)
	}
	defer pc.Close()
	transport := host.NewPeerConnectionTransport(pc)
	conn := host.NewConnection(transport, func() []string { return config.HostPermissions })
	provider := host.Provider(func() host.Connection { return conn })

	// 5. Classifier & media gate
	root := host.NewStateRoot()
	classifier := services.NewClassifier(provider, root, log)
	classifier.PollAndApply()

	// The embedding host replaces this with its real device entry point.
	acquire := host.DeviceAcquirer(func(context.Context, host.MediaConstraints) (host.MediaStream, error) {
		return nil, fmt.Errorf("no device pipeline attached")
	})
	gate := services.NewMediaGate(classifier.Current, acquire, log)

	// 6. Attendance tracker
	reliable := sink.NewReliableSink(config.AttendanceEndpoint, config.SendTimeout, log)
	bestEffort := sink.NewBestEffortSink(config.AttendanceEndpoint, config.SendTimeout, log)
	tracker := workers.NewTracker(reliable, bestEffort, tokens, config.HeartbeatPeriod, log)
	watcher := workers.NewJoinWatcher(provider, tracker, tokens.HandleClose,
		config.JoinPollInterval, config.JoinPollWindow, log)

	// 7. Diagnostics
	diag := observability.NewManager(log)
	tokens.RegisterDiagnostics(diag.Registry())
	diag.Registry().Register("checkMediaAccess", func() (string, error) {
		_, err := gate.Acquire(context.Background(), host.MediaConstraints{Audio: true, Video: true})
		if err != nil {
			return err.Error(), nil
		}
		return "allowed", nil
	})
	diag.SetSources(observability.Sources{
		Role: func() (string, bool) {
			role, ok := classifier.Current()
			return role.String(), ok
		},
		Connection:       func() bool { return provider() != nil },
		Attendance:       tracker.State,
		TokenFingerprint: tokens.SessionFingerprint,
	})
	if config.DiagPort > 0 {
		srv := internal.StartDebugServer(diag, config.DiagPort, log)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	// 8. Context & signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 9. Watchers under supervision. Both self-cancel after their
	// windows; the session itself runs until a signal arrives.
	sup := workers.NewSupervisor(log)
	sup.Add(watcher, classifier.Watcher(config.ClassifyInterval, config.ClassifyWindow))
	sup.Run(ctx)
	<-ctx.Done()

	// Shutdown is a leave path; TrackLeave is idempotent with the
	// transport-close path.
	tracker.TrackLeave()
	printSummary(diag.Snapshot())
	return nil
}

// printSummary renders the final session snapshot for the operator.
func printSummary(snap observability.Snapshot) {
	color.Bold.Println("\nSession summary")
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Field", "Value"})
	table.Append([]string{"session_id", snap.SessionID})
	table.Append([]string{"role", colorRole(snap.Role)})
	table.Append([]string{"connection_present", strconv.FormatBool(snap.ConnectionPresent)})
	table.Append([]string{"has_joined", strconv.FormatBool(snap.HasJoined)})
	table.Append([]string{"heartbeat_active", strconv.FormatBool(snap.HeartbeatActive)})
	table.Append([]string{"token_fingerprint", snap.TokenFingerprint})
	table.Render()
}

func colorRole(role string) string {
	switch role {
	case "operator":
		return color.Red.Sprint(role)
	case "presenter":
		return color.Yellow.Sprint(role)
	default:
		return color.Green.Sprint(role)
	}
}
