package e2e

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config tunes the end-to-end harness. Defaults are sized so a full
// join/heartbeat/leave cycle completes in well under a second.
type Config struct {
	DebugJSON       bool          `envconfig:"E2E_DEBUG_JSON" default:"false"`
	HeartbeatPeriod time.Duration `envconfig:"E2E_HEARTBEAT_PERIOD" default:"30ms"`
	PollInterval    time.Duration `envconfig:"E2E_POLL_INTERVAL" default:"10ms"`
	PollWindow      time.Duration `envconfig:"E2E_POLL_WINDOW" default:"2s"`
	SendTimeout     time.Duration `envconfig:"E2E_SEND_TIMEOUT" default:"1s"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
