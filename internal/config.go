package internal

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Config is the companion's environment-driven configuration. The
// intervals default to the values the attendance backend expects;
// tests shrink them.
type Config struct {
	LogLevel           string        `env:"LOG_LEVEL,default=INFO"`
	BadgerFilepath     string        `env:"BADGER_FILEPATH,required=true" validate:"required"`
	AttendanceEndpoint string        `env:"ATTENDANCE_ENDPOINT,required=true" validate:"required,url"`
	LaunchQuery        string        `env:"LAUNCH_QUERY"`
	HostPermissions    []string      `env:"HOST_PERMISSIONS"`
	HeartbeatPeriod    time.Duration `env:"HEARTBEAT_PERIOD,default=5s" validate:"gt=0"`
	ClassifyInterval   time.Duration `env:"CLASSIFY_INTERVAL,default=1s" validate:"gt=0"`
	ClassifyWindow     time.Duration `env:"CLASSIFY_WINDOW,default=30s" validate:"gt=0"`
	JoinPollInterval   time.Duration `env:"JOIN_POLL_INTERVAL,default=500ms" validate:"gt=0"`
	JoinPollWindow     time.Duration `env:"JOIN_POLL_WINDOW,default=30s" validate:"gt=0"`
	SendTimeout        time.Duration `env:"SEND_TIMEOUT,default=3s" validate:"gt=0"`
	DiagPort           int           `env:"DIAG_PORT,default=0" validate:"gte=0,lte=65535"`
}

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
