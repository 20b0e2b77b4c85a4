//go:generate go run go.uber.org/mock/mockgen -source=attendance.go -destination=../mocks/mock_sender.go -package=mocks

// Package sink delivers attendance events to the backend. Attendance
// is best-effort telemetry: a delivery failure is logged once and
// never retried, and nothing here may block the session itself.
package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"galene-companion/domain"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Sender delivers a single attendance event.
type Sender interface {
	Send(ctx context.Context, event domain.AttendanceEvent) error
}

// ReliableSink is the boundary-event channel: join and leave may race
// with teardown, so delivery runs synchronously on a detached context
// with its own short deadline. The response status is ignored; once
// the request is on the wire the event counts as delivered.
type ReliableSink struct {
	log      *slog.Logger
	client   *http.Client
	endpoint string
	timeout  time.Duration
}

func NewReliableSink(endpoint string, timeout time.Duration, log *slog.Logger) *ReliableSink {
	return &ReliableSink{
		log:      log,
		client:   &http.Client{Timeout: timeout},
		endpoint: endpoint,
		timeout:  timeout,
	}
}

func (s *ReliableSink) Send(_ context.Context, event domain.AttendanceEvent) error {
	// Deliberately detached from the caller: a shutdown in progress
	// must not cancel the leave event it is trying to report.
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	resp, err := post(ctx, s.client, s.endpoint, event)
	if err != nil {
		return fmt.Errorf("reliable send %s: %w", event.EventType, err)
	}
	// Response status deliberately ignored: the boundary event left
	// the process, which is all this channel promises.
	resp.Body.Close()
	s.log.Debug("Delivered boundary event", "event", string(event.EventType))
	return nil
}

// BestEffortSink is the periodic-liveness channel. It honors the
// caller's context and reports non-2xx responses as failures.
type BestEffortSink struct {
	log      *slog.Logger
	client   *http.Client
	endpoint string
}

func NewBestEffortSink(endpoint string, timeout time.Duration, log *slog.Logger) *BestEffortSink {
	return &BestEffortSink{
		log:      log,
		client:   &http.Client{Timeout: timeout},
		endpoint: endpoint,
	}
}

func (s *BestEffortSink) Send(ctx context.Context, event domain.AttendanceEvent) error {
	resp, err := post(ctx, s.client, s.endpoint, event)
	if err != nil {
		return fmt.Errorf("best-effort send %s: %w", event.EventType, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("best-effort send %s: backend returned %d", event.EventType, resp.StatusCode)
	}
	s.log.Debug("Delivered liveness event", "event", string(event.EventType))
	return nil
}

func post(ctx context.Context, client *http.Client, endpoint string, event domain.AttendanceEvent) (*http.Response, error) {
	if err := validate.Struct(event); err != nil {
		return nil, fmt.Errorf("invalid attendance event: %w", err)
	}
	body, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal attendance event: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return client.Do(req)
}
