// Package reconciler keeps the switch's observed state aligned with the
// sun-schedule's desired state.
package reconciler

import (
	"context"
	"sync"
	"time"

	"sunswitch/internal/clock"
	"sunswitch/internal/schedule"
	"sunswitch/internal/shelly"
	"sunswitch/internal/suntimes"

	"go.uber.org/zap"
)

// DefaultInterval is the pause between reconciliation passes.
const DefaultInterval = 60 * time.Second

// Snapshot is the most recent reconciliation result, served by the API.
type Snapshot struct {
	Observed  bool      `json:"observed"`
	Desired   bool      `json:"desired"`
	Sunrise   time.Time `json:"sunrise"`
	Sunset    time.Time `json:"sunset"`
	LastCheck time.Time `json:"last_check"`
}

// Reconciler polls the device and issues a command only when desired and
// observed state disagree. The device is queried fresh every pass; nothing
// is cached between iterations.
type Reconciler struct {
	client   shelly.Client
	sun      *suntimes.Provider
	clk      clock.Clock
	interval time.Duration
	wake     <-chan struct{}
	logger   *zap.Logger

	mu   sync.Mutex
	last Snapshot
}

// New creates a Reconciler. If interval is zero, DefaultInterval is used.
func New(client shelly.Client, sun *suntimes.Provider, clk clock.Clock, interval time.Duration, logger *zap.Logger) *Reconciler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Reconciler{
		client:   client,
		sun:      sun,
		clk:      clk,
		interval: interval,
		logger:   logger.Named("reconciler"),
	}
}

// WakeOn registers a channel that cuts the between-pass sleep short, used
// by the device event watcher. Must be called before Run.
func (r *Reconciler) WakeOn(ch <-chan struct{}) {
	r.wake = ch
}

// Run executes the control loop until ctx is cancelled or a device
// communication error occurs. The error is returned to the caller; the
// exit-versus-retry policy lives there, not here.
func (r *Reconciler) Run(ctx context.Context) error {
	now := r.clk.Now().In(r.sun.Timezone())
	st := r.sun.ComputeSunTimes(now)

	r.logger.Info("Sun times for today",
		zap.Time("sunrise", st.Sunrise),
		zap.Time("sunset", st.Sunset))

	for {
		now = r.clk.Now().In(r.sun.Timezone())

		// A long-running process crosses midnight; yesterday's sunset
		// must not drive today's schedule.
		if !st.SameDay(now) {
			st = r.sun.ComputeSunTimes(now)
			r.logger.Info("Sun times recomputed for new day",
				zap.Time("sunrise", st.Sunrise),
				zap.Time("sunset", st.Sunset))
		}

		if err := r.Step(ctx, now, st); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			r.logger.Info("Reconciler stopping")
			return nil
		case <-r.clk.After(r.interval):
		case <-r.wake:
			r.logger.Debug("Woken early by device event")
		}
	}
}

// Step performs one reconciliation pass: fetch observed state, compute
// desired state, command the device only on mismatch.
func (r *Reconciler) Step(ctx context.Context, now time.Time, st suntimes.SunTimes) error {
	desired := schedule.ShouldBeOn(now, st.Sunset)

	observed, err := r.client.GetState(ctx)
	if err != nil {
		return err
	}

	switch {
	case desired && !observed:
		r.logger.Info("Past sunset and before midnight - turning lights on")
		if err := r.client.SetState(ctx, true); err != nil {
			return err
		}
	case !desired && observed:
		r.logger.Info("Before sunset or past midnight - turning lights off")
		if err := r.client.SetState(ctx, false); err != nil {
			return err
		}
	default:
		r.logger.Debug("Lights already in the correct state")
	}

	r.mu.Lock()
	r.last = Snapshot{
		Observed:  observed,
		Desired:   desired,
		Sunrise:   st.Sunrise,
		Sunset:    st.Sunset,
		LastCheck: now,
	}
	r.mu.Unlock()

	return nil
}

// TurnOn switches the device on if it is not already on. One-shot entry
// point, independent of the loop.
func (r *Reconciler) TurnOn(ctx context.Context) error {
	observed, err := r.client.GetState(ctx)
	if err != nil {
		return err
	}
	if observed {
		r.logger.Info("Device is already on. No action taken.")
		return nil
	}

	r.logger.Info("Device is currently off, turning it on")
	return r.client.SetState(ctx, true)
}

// TurnOff switches the device off if it is not already off. One-shot entry
// point, independent of the loop.
func (r *Reconciler) TurnOff(ctx context.Context) error {
	observed, err := r.client.GetState(ctx)
	if err != nil {
		return err
	}
	if !observed {
		r.logger.Info("Device is already off. No action taken.")
		return nil
	}

	r.logger.Info("Device is currently on, turning it off")
	return r.client.SetState(ctx, false)
}

// Status returns the snapshot of the most recent pass.
func (r *Reconciler) Status() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}
