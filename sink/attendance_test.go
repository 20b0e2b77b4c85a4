package sink

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"galene-companion/domain"

	"github.com/stretchr/testify/require"
)

type capture struct {
	mu     sync.Mutex
	bodies []map[string]any
	status int
}

func (c *capture) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var decoded map[string]any
		_ = json.Unmarshal(body, &decoded)
		c.mu.Lock()
		c.bodies = append(c.bodies, decoded)
		status := c.status
		c.mu.Unlock()
		if status != 0 {
			w.WriteHeader(status)
		}
	}
}

func (c *capture) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.bodies)
}

func Test_Reliable_Send_Posts_Wire_Payload(t *testing.T) {
	req := require.New(t)
	backend := &capture{}
	server := httptest.NewServer(backend.handler())
	defer server.Close()

	s := NewReliableSink(server.URL+"/api/internal/attendance", time.Second, slog.Default())
	event := domain.NewAttendanceEvent(domain.EventJoin, "abc123", time.Now())
	req.NoError(s.Send(context.Background(), event))

	req.Equal(1, backend.count())
	body := backend.bodies[0]
	req.Equal("join", body["eventType"])
	req.Equal("abc123", body["token"])
	req.InDelta(float64(event.Timestamp), body["timestamp"].(float64), 1)
}

func Test_Reliable_Send_Ignores_Response_Status(t *testing.T) {
	req := require.New(t)
	backend := &capture{status: http.StatusInternalServerError}
	server := httptest.NewServer(backend.handler())
	defer server.Close()

	s := NewReliableSink(server.URL, time.Second, slog.Default())
	req.NoError(s.Send(context.Background(), domain.NewAttendanceEvent(domain.EventLeave, "abc123", time.Now())))
}

func Test_Reliable_Send_Survives_Canceled_Context(t *testing.T) {
	req := require.New(t)
	backend := &capture{}
	server := httptest.NewServer(backend.handler())
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewReliableSink(server.URL, time.Second, slog.Default())
	req.NoError(s.Send(ctx, domain.NewAttendanceEvent(domain.EventLeave, "abc123", time.Now())))
	req.Equal(1, backend.count(), "a teardown in progress must not cancel the leave event")
}

func Test_BestEffort_Send_Reports_Backend_Failure(t *testing.T) {
	req := require.New(t)
	backend := &capture{status: http.StatusBadGateway}
	server := httptest.NewServer(backend.handler())
	defer server.Close()

	s := NewBestEffortSink(server.URL, time.Second, slog.Default())
	err := s.Send(context.Background(), domain.NewAttendanceEvent(domain.EventHeartbeat, "abc123", time.Now()))
	req.Error(err)
	req.Contains(err.Error(), "502")
}

func Test_Invalid_Event_Never_Reaches_The_Wire(t *testing.T) {
	req := require.New(t)
	backend := &capture{}
	server := httptest.NewServer(backend.handler())
	defer server.Close()

	s := NewBestEffortSink(server.URL, time.Second, slog.Default())
	err := s.Send(context.Background(), domain.AttendanceEvent{EventType: "departed", Token: "abc123", Timestamp: 1})
	req.Error(err)
	req.Zero(backend.count())
}
