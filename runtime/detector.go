package runtime

import (
	"context"
	"log/slog"
	"time"
)

// Probe samples an external condition. ok=false means the condition is
// not observable yet (host not ready), which is a retry, not an error.
type Probe func() (value any, ok bool)

// Detector is a bounded-lifetime change detector: it polls a probe on
// a fixed interval until either its window elapses or, in single-shot
// mode, the first successful observation. The host exposes no change
// notifications, so polling with a hard deadline is the deliberate
// trade-off: bounded staleness after the window instead of unbounded
// background work. Both the permission watcher and the join detector
// are built on it.
type Detector struct {
	log      *slog.Logger
	name     string
	interval time.Duration
	window   time.Duration
	probe    Probe
	equal    func(previous, next any) bool
	onChange func(value any)
	once     bool
}

// NewDetector builds a recurring detector. equal may be nil, in which
// case every successful probe counts as a change.
func NewDetector(
	log *slog.Logger,
	name string,
	interval, window time.Duration,
	probe Probe,
	equal func(previous, next any) bool,
	onChange func(value any),
) *Detector {
	return &Detector{
		log:      log,
		name:     name,
		interval: interval,
		window:   window,
		probe:    probe,
		equal:    equal,
		onChange: onChange,
	}
}

// NewSingleShotDetector stops after the first successful observation.
func NewSingleShotDetector(
	log *slog.Logger,
	name string,
	interval, window time.Duration,
	probe Probe,
	onDetect func(value any),
) *Detector {
	d := NewDetector(log, name, interval, window, probe, nil, onDetect)
	d.once = true
	return d
}

// Run polls until the window elapses, the goal is reached (single-shot
// mode), or ctx is canceled. The ticker never outlives the window:
// both timers are stopped on every return path.
func (d *Detector) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	deadline := time.NewTimer(d.window)
	defer deadline.Stop()

	var previous any
	var observed bool

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			d.log.Debug("Detector window elapsed", "name", d.name)
			return nil
		case <-ticker.C:
			value, ok := d.probe()
			if !ok {
				continue
			}
			if observed && d.equal != nil && d.equal(previous, value) {
				continue
			}
			previous, observed = value, true
			d.onChange(value)
			if d.once {
				return nil
			}
		}
	}
}
