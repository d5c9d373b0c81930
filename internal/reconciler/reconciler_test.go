package reconciler

import (
	"context"
	"errors"
	"testing"
	"time"

	"sunswitch/internal/clock"
	"sunswitch/internal/config"
	"sunswitch/internal/shelly"
	"sunswitch/internal/suntimes"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestProvider(t *testing.T) *suntimes.Provider {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	p, err := suntimes.NewProvider(&config.Location{
		Name:      "Ann Arbor",
		Region:    "USA",
		Timezone:  "America/Detroit",
		Latitude:  42.2807,
		Longitude: -83.7430,
	}, logger)
	require.NoError(t, err)
	return p
}

func detroit(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Detroit")
	require.NoError(t, err)
	return loc
}

// fixedSunTimes builds sun times for June 1 2024 with sunset at 20:45 local.
func fixedSunTimes(t *testing.T) suntimes.SunTimes {
	loc := detroit(t)
	return suntimes.SunTimes{
		Date:    time.Date(2024, 6, 1, 0, 0, 0, 0, loc),
		Sunrise: time.Date(2024, 6, 1, 6, 0, 0, 0, loc),
		Sunset:  time.Date(2024, 6, 1, 20, 45, 0, 0, loc),
	}
}

func newTestReconciler(t *testing.T, client shelly.Client, clk clock.Clock) *Reconciler {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	return New(client, newTestProvider(t), clk, time.Minute, logger)
}

func TestStep_TurnsOnAfterSunset(t *testing.T) {
	loc := detroit(t)
	st := fixedSunTimes(t)
	now := time.Date(2024, 6, 1, 21, 0, 0, 0, loc)

	mock := shelly.NewMockClient(false)
	r := newTestReconciler(t, mock, clock.NewMockClock(now))

	require.NoError(t, r.Step(context.Background(), now, st))

	assert.Equal(t, []bool{true}, mock.SetCalls())
}

func TestStep_TurnsOffPastMidnight(t *testing.T) {
	loc := detroit(t)
	st := fixedSunTimes(t)
	now := time.Date(2024, 6, 2, 0, 30, 0, 0, loc)

	mock := shelly.NewMockClient(true)
	r := newTestReconciler(t, mock, clock.NewMockClock(now))

	require.NoError(t, r.Step(context.Background(), now, st))

	assert.Equal(t, []bool{false}, mock.SetCalls())
}

func TestStep_NoActionBeforeSunset(t *testing.T) {
	loc := detroit(t)
	st := fixedSunTimes(t)
	now := time.Date(2024, 6, 1, 20, 0, 0, 0, loc)

	mock := shelly.NewMockClient(false)
	r := newTestReconciler(t, mock, clock.NewMockClock(now))

	require.NoError(t, r.Step(context.Background(), now, st))

	assert.Empty(t, mock.SetCalls())
	assert.Equal(t, 1, mock.GetCalls())
}

func TestStep_Idempotent(t *testing.T) {
	loc := detroit(t)
	st := fixedSunTimes(t)
	now := time.Date(2024, 6, 1, 21, 0, 0, 0, loc)

	mock := shelly.NewMockClient(false)
	r := newTestReconciler(t, mock, clock.NewMockClock(now))

	require.NoError(t, r.Step(context.Background(), now, st))
	require.NoError(t, r.Step(context.Background(), now.Add(time.Minute), st))

	// The first pass commanded the switch on; the second observes the
	// matching state and does nothing.
	assert.Equal(t, []bool{true}, mock.SetCalls())
	assert.Equal(t, 2, mock.GetCalls())
}

func TestStep_PropagatesQueryError(t *testing.T) {
	loc := detroit(t)
	st := fixedSunTimes(t)
	now := time.Date(2024, 6, 1, 21, 0, 0, 0, loc)

	mock := shelly.NewMockClient(false)
	commErr := &shelly.CommError{Op: "Shelly.GetStatus", StatusCode: 500, Body: "boom"}
	mock.FailGetWith(commErr)

	r := newTestReconciler(t, mock, clock.NewMockClock(now))

	err := r.Step(context.Background(), now, st)
	require.Error(t, err)

	var got *shelly.CommError
	require.True(t, errors.As(err, &got))
	assert.Equal(t, 500, got.StatusCode)

	// No command may be attempted after a failed query.
	assert.Empty(t, mock.SetCalls())
}

func TestStep_PropagatesCommandError(t *testing.T) {
	loc := detroit(t)
	st := fixedSunTimes(t)
	now := time.Date(2024, 6, 1, 21, 0, 0, 0, loc)

	mock := shelly.NewMockClient(false)
	mock.FailSetWith(&shelly.CommError{Op: "Switch.Set", StatusCode: 502})

	r := newTestReconciler(t, mock, clock.NewMockClock(now))

	err := r.Step(context.Background(), now, st)
	require.Error(t, err)

	var got *shelly.CommError
	assert.True(t, errors.As(err, &got))
}

func TestStep_UpdatesSnapshot(t *testing.T) {
	loc := detroit(t)
	st := fixedSunTimes(t)
	now := time.Date(2024, 6, 1, 21, 0, 0, 0, loc)

	mock := shelly.NewMockClient(false)
	r := newTestReconciler(t, mock, clock.NewMockClock(now))

	require.NoError(t, r.Step(context.Background(), now, st))

	snap := r.Status()
	assert.False(t, snap.Observed)
	assert.True(t, snap.Desired)
	assert.Equal(t, st.Sunset, snap.Sunset)
	assert.Equal(t, now, snap.LastCheck)
}

func TestRun_ReturnsCommunicationError(t *testing.T) {
	loc := detroit(t)
	now := time.Date(2024, 6, 1, 21, 0, 0, 0, loc)

	mock := shelly.NewMockClient(false)
	commErr := &shelly.CommError{Op: "Shelly.GetStatus", StatusCode: 500}
	mock.FailGetWith(commErr)

	r := newTestReconciler(t, mock, clock.NewMockClock(now))

	err := r.Run(context.Background())
	require.Error(t, err)

	var got *shelly.CommError
	assert.True(t, errors.As(err, &got))
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	loc := detroit(t)
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, loc)

	mock := shelly.NewMockClient(false)
	clk := clock.NewMockClock(now)
	r := newTestReconciler(t, mock, clk)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- r.Run(ctx)
	}()

	// Let the first pass run, then cancel mid-sleep.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after context cancellation")
	}

	assert.GreaterOrEqual(t, mock.GetCalls(), 1)
}

func TestRun_RecomputesSunTimesAcrossMidnight(t *testing.T) {
	loc := detroit(t)
	start := time.Date(2024, 6, 1, 23, 59, 30, 0, loc)

	mock := shelly.NewMockClient(true) // on: it's past sunset
	clk := clock.NewMockClock(start)
	r := newTestReconciler(t, mock, clk)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- r.Run(ctx)
	}()

	// First pass at 23:59:30: past sunset, switch already on, no command.
	waitForGetCalls(t, mock, 1)
	assert.Empty(t, mock.SetCalls())

	// Cross midnight: the next pass must use June 2 sun times and turn the
	// switch off.
	clk.Advance(time.Minute)
	waitForGetCalls(t, mock, 2)
	assert.Equal(t, []bool{false}, mock.SetCalls())

	snap := r.Status()
	assert.Equal(t, 2, snap.Sunset.Day(), "sunset should be recomputed for the new day")

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestRun_WakeChannelTriggersImmediatePass(t *testing.T) {
	loc := detroit(t)
	start := time.Date(2024, 6, 1, 22, 0, 0, 0, loc)

	mock := shelly.NewMockClient(true)
	clk := clock.NewMockClock(start)
	r := newTestReconciler(t, mock, clk)

	wake := make(chan struct{}, 1)
	r.WakeOn(wake)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- r.Run(ctx)
	}()

	waitForGetCalls(t, mock, 1)

	// Someone flips the switch off at the wall; the watcher signals and
	// the next pass turns it back on without waiting out the interval.
	mock.SetCurrentState(false)
	wake <- struct{}{}

	waitForGetCalls(t, mock, 2)
	assert.Equal(t, []bool{true}, mock.SetCalls())

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestTurnOn(t *testing.T) {
	mock := shelly.NewMockClient(false)
	r := newTestReconciler(t, mock, clock.NewRealClock())

	require.NoError(t, r.TurnOn(context.Background()))
	assert.Equal(t, []bool{true}, mock.SetCalls())

	// Already on: no further command.
	require.NoError(t, r.TurnOn(context.Background()))
	assert.Equal(t, []bool{true}, mock.SetCalls())
}

func TestTurnOff(t *testing.T) {
	mock := shelly.NewMockClient(true)
	r := newTestReconciler(t, mock, clock.NewRealClock())

	require.NoError(t, r.TurnOff(context.Background()))
	assert.Equal(t, []bool{false}, mock.SetCalls())

	require.NoError(t, r.TurnOff(context.Background()))
	assert.Equal(t, []bool{false}, mock.SetCalls())
}

func TestTurnOn_PropagatesError(t *testing.T) {
	mock := shelly.NewMockClient(false)
	mock.FailGetWith(&shelly.CommError{Op: "Shelly.GetStatus", StatusCode: 500})

	r := newTestReconciler(t, mock, clock.NewRealClock())

	err := r.TurnOn(context.Background())
	require.Error(t, err)
	assert.Empty(t, mock.SetCalls())
}

// waitForGetCalls polls until the mock has seen at least n status queries.
func waitForGetCalls(t *testing.T, mock *shelly.MockClient, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if mock.GetCalls() >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d status queries (got %d)", n, mock.GetCalls())
}
