package cover

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valentingc/elero2mqtt/internal/elero"
)

type fakeTimer struct {
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// fakeClock drives the travel-time machinery deterministically.
type fakeClock struct {
	now    time.Time
	timers []*fakeTimer
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) timer {
	t := &fakeTimer{at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

// advance moves time forward, firing due timers in order.
func (c *fakeClock) advance(d time.Duration) {
	target := c.now.Add(d)
	for {
		var due *fakeTimer
		for _, t := range c.timers {
			if t.stopped || t.fired || t.at.After(target) {
				continue
			}
			if due == nil || t.at.Before(due.at) {
				due = t
			}
		}
		if due == nil {
			break
		}
		c.now = due.at
		due.fired = true
		due.f()
	}
	c.now = target
}

var allFeatures = []string{
	"open", "close", "stop", "set_position",
	"open_tilt", "close_tilt", "stop_tilt", "set_tilt_position",
}

func newTestCover(t *testing.T) (*Cover, *elero.FakeTransmitter, *fakeClock) {
	t.Helper()

	tr := elero.NewFakeTransmitter("2A3B4C")
	c, err := New(tr, "salon", 1, "roller shutter", allFeatures, 50*time.Second)
	require.NoError(t, err)

	clk := newFakeClock()
	c.clock = clk
	return c, tr, clk
}

func pos(c *Cover, t *testing.T) int {
	t.Helper()
	p, known := c.Position()
	require.True(t, known)
	return p
}

func TestNewValidation(t *testing.T) {
	tr := elero.NewFakeTransmitter("2A3B4C")

	t.Run("channel below range", func(t *testing.T) {
		_, err := New(tr, "x", 0, "roller shutter", allFeatures, 50*time.Second)
		assert.Error(t, err)
	})

	t.Run("channel above range", func(t *testing.T) {
		_, err := New(tr, "x", 16, "roller shutter", allFeatures, 50*time.Second)
		assert.Error(t, err)
	})

	t.Run("non-positive travel time", func(t *testing.T) {
		_, err := New(tr, "x", 1, "roller shutter", allFeatures, 0)
		assert.Error(t, err)
	})

	t.Run("unsupported device class", func(t *testing.T) {
		_, err := New(tr, "x", 1, "garage", allFeatures, 50*time.Second)
		assert.Error(t, err)
	})

	t.Run("unsupported feature token", func(t *testing.T) {
		_, err := New(tr, "x", 1, "roller shutter", []string{"levitate"}, 50*time.Second)
		assert.Error(t, err)
	})

	t.Run("missing transmitter", func(t *testing.T) {
		_, err := New(nil, "x", 1, "roller shutter", allFeatures, 50*time.Second)
		assert.Error(t, err)
	})

	t.Run("valid config maps device class and registers the channel", func(t *testing.T) {
		c, err := New(tr, "garagedoor", 3, "rolling door", []string{"open", "close"}, 50*time.Second)
		require.NoError(t, err)
		assert.Equal(t, "garage", c.DeviceClass())
		assert.True(t, c.Available())
		assert.True(t, c.Supports(FeatureOpen))
		assert.False(t, c.Supports(FeatureSetPosition))
		assert.Equal(t, "2A3B4C_3", c.UniqueID())
	})

	t.Run("unavailable channel", func(t *testing.T) {
		unavailable := elero.NewFakeTransmitter("FFFFFF")
		unavailable.Unavailable = true
		c, err := New(unavailable, "x", 1, "awning", allFeatures, 50*time.Second)
		require.NoError(t, err)
		assert.False(t, c.Available())
	})
}

func TestOpenOptimisticState(t *testing.T) {
	c, tr, clk := newTestCover(t)

	c.Open()

	assert.Equal(t, []string{"up 1"}, tr.Commands)
	assert.Equal(t, StateOpening, c.State())
	assert.True(t, c.IsOpening())
	assert.Equal(t, PositionOpen, pos(c, t))
	closed, known := c.IsClosed()
	assert.True(t, known)
	assert.False(t, closed)

	tilt, known := c.TiltPosition()
	assert.True(t, known)
	assert.Equal(t, PositionUndefined, tilt)

	t.Run("status poll fires after full travel time", func(t *testing.T) {
		clk.advance(50 * time.Second)
		assert.Equal(t, []string{"up 1", "info 1"}, tr.Commands)
	})
}

func TestCloseOptimisticState(t *testing.T) {
	c, tr, _ := newTestCover(t)

	c.Close()

	assert.Equal(t, []string{"down 1"}, tr.Commands)
	assert.Equal(t, StateClosing, c.State())
	assert.True(t, c.IsClosing())
	assert.Equal(t, PositionClosed, pos(c, t))
}

func TestStopFoldsElapsedTravel(t *testing.T) {
	c, tr, clk := newTestCover(t)
	tr.Push(1, elero.StatusBottomPositionStop) // position 0, known base

	c.Open()
	clk.advance(25 * time.Second)
	c.Stop()

	assert.Equal(t, []string{"up 1", "stop 1"}, tr.Commands)
	assert.Equal(t, StateStopped, c.State())
	assert.Equal(t, 50, pos(c, t))
	last, known := c.LastKnownPosition()
	assert.True(t, known)
	assert.Equal(t, 50, last)
	assert.Equal(t, MovementIdle, c.Movement())
}

func TestStopCancelsPendingTimer(t *testing.T) {
	c, tr, clk := newTestCover(t)

	c.Open()
	c.Stop()
	commands := len(tr.Commands)

	clk.advance(2 * 50 * time.Second)
	assert.Equal(t, commands, len(tr.Commands), "cancelled travel timer must not poll")
}

func TestStaleTimerDoesNotMutateState(t *testing.T) {
	c, tr, clk := newTestCover(t)
	tr.Push(1, elero.StatusBottomPositionStop)

	require.NoError(t, c.SetPosition(60))
	staleCompletion := clk.timers[len(clk.timers)-1]

	c.Stop()
	stopped := c.Snapshot()

	// Fire the superseded completion anyway; the sequence token must reject it.
	staleCompletion.f()

	assert.Equal(t, stopped, c.Snapshot())
}

func TestSetPosition(t *testing.T) {
	t.Run("rejects out of range targets", func(t *testing.T) {
		c, tr, _ := newTestCover(t)
		assert.Error(t, c.SetPosition(-1))
		assert.Error(t, c.SetPosition(101))
		assert.Empty(t, tr.Commands)
	})

	t.Run("rejects unknown base position", func(t *testing.T) {
		c, tr, _ := newTestCover(t)
		assert.Error(t, c.SetPosition(30))
		assert.Empty(t, tr.Commands)
	})

	t.Run("no-op when already on target", func(t *testing.T) {
		c, tr, _ := newTestCover(t)
		tr.Push(1, elero.StatusTopPositionStop)
		tr.Commands = nil

		require.NoError(t, c.SetPosition(100))
		assert.Empty(t, tr.Commands)
		assert.Equal(t, StateOpen, c.State())
	})

	t.Run("closes toward a lower target and pins it on completion", func(t *testing.T) {
		c, tr, clk := newTestCover(t)
		c.RestoreSnapshot(Snapshot{
			Position:          intPtr(80),
			LastKnownPosition: intPtr(80),
			TmpPosition:       floatPtr(80),
		})
		tr.Commands = nil

		require.NoError(t, c.SetPosition(30))

		assert.Equal(t, []string{"down 1"}, tr.Commands)
		assert.Equal(t, StateClosing, c.State())
		// Optimistic end-stop write is suppressed; the completion owns it.
		assert.Equal(t, 80, pos(c, t))

		clk.advance(25 * time.Second)

		assert.Equal(t, []string{"down 1", "stop 1"}, tr.Commands)
		assert.Equal(t, 30, pos(c, t))
		last, _ := c.LastKnownPosition()
		assert.Equal(t, 30, last)
		assert.Equal(t, MovementIdle, c.Movement())
		assert.Equal(t, StateStopped, c.State())
	})

	t.Run("opens toward a higher target", func(t *testing.T) {
		c, tr, clk := newTestCover(t)
		tr.Push(1, elero.StatusBottomPositionStop)
		tr.Commands = nil

		require.NoError(t, c.SetPosition(100))
		assert.Equal(t, []string{"up 1"}, tr.Commands)

		clk.advance(50 * time.Second)
		assert.Equal(t, []string{"up 1", "stop 1"}, tr.Commands)
		assert.Equal(t, 100, pos(c, t))
		assert.Equal(t, StateOpen, c.State())
		closed, _ := c.IsClosed()
		assert.False(t, closed)
	})
}

func TestTiltPositions(t *testing.T) {
	t.Run("ventilation tilting", func(t *testing.T) {
		c, tr, _ := newTestCover(t)
		c.VentilationTiltingPosition()

		assert.Equal(t, []string{"ventilation_tilting 1"}, tr.Commands)
		assert.Equal(t, StateTiltVentilation, c.State())
		assert.Equal(t, PositionTiltVentilation, pos(c, t))
		tilt, _ := c.TiltPosition()
		assert.Equal(t, PositionTiltVentilation, tilt)
	})

	t.Run("intermediate", func(t *testing.T) {
		c, tr, _ := newTestCover(t)
		c.IntermediatePosition()

		assert.Equal(t, []string{"intermediate 1"}, tr.Commands)
		assert.Equal(t, StateIntermediate, c.State())
		assert.Equal(t, PositionIntermediate, pos(c, t))
	})

	t.Run("open and close tilt map to the discrete stops", func(t *testing.T) {
		c, tr, _ := newTestCover(t)
		c.OpenTilt()
		c.CloseTilt()
		assert.Equal(t, []string{"intermediate 1", "ventilation_tilting 1"}, tr.Commands)
	})

	t.Run("set tilt position picks a side of the midpoint", func(t *testing.T) {
		c, tr, _ := newTestCover(t)
		require.NoError(t, c.SetTiltPosition(20))
		require.NoError(t, c.SetTiltPosition(80))
		assert.Equal(t, []string{"ventilation_tilting 1", "intermediate 1"}, tr.Commands)
	})

	t.Run("ambiguous midpoint is rejected without transmission", func(t *testing.T) {
		c, tr, _ := newTestCover(t)
		assert.Error(t, c.SetTiltPosition(50))
		assert.Error(t, c.SetTiltPosition(-1))
		assert.Error(t, c.SetTiltPosition(101))
		assert.Empty(t, tr.Commands)
	})
}

func TestUpdatePollsOnly(t *testing.T) {
	c, tr, _ := newTestCover(t)
	state := c.Snapshot()

	c.Update()

	assert.Equal(t, []string{"info 1"}, tr.Commands)
	assert.Equal(t, state, c.Snapshot())
}

func TestSnapshotRestore(t *testing.T) {
	t.Run("empty snapshot restores neutral defaults", func(t *testing.T) {
		c, _, _ := newTestCover(t)
		c.RestoreSnapshot(Snapshot{})

		assert.Equal(t, PositionUndefined, pos(c, t))
		last, _ := c.LastKnownPosition()
		assert.Equal(t, PositionUndefined, last)
		tilt, _ := c.TiltPosition()
		assert.Equal(t, PositionUndefined, tilt)
		closed, known := c.IsClosed()
		assert.True(t, known)
		assert.False(t, closed)
		assert.Equal(t, StateStopped, c.State())
	})

	t.Run("round trip", func(t *testing.T) {
		c, tr, clk := newTestCover(t)
		tr.Push(1, elero.StatusBottomPositionStop)
		c.Open()
		clk.advance(10 * time.Second)
		c.Stop()

		restored, _, _ := newTestCover(t)
		restored.RestoreSnapshot(c.Snapshot())

		assert.Equal(t, pos(c, t), pos(restored, t))
		lastC, _ := c.LastKnownPosition()
		lastR, _ := restored.LastKnownPosition()
		assert.Equal(t, lastC, lastR)
		assert.Equal(t, c.LastStatus(), restored.LastStatus())
	})

	t.Run("restored base feeds set position", func(t *testing.T) {
		c, tr, _ := newTestCover(t)
		c.RestoreSnapshot(Snapshot{LastKnownPosition: intPtr(80)})
		tr.Commands = nil

		require.NoError(t, c.SetPosition(30))
		assert.Equal(t, []string{"down 1"}, tr.Commands)
	})
}

func TestOnUpdateNotifies(t *testing.T) {
	c, tr, _ := newTestCover(t)

	var updates []Update
	c.OnUpdate(func(u Update) {
		updates = append(updates, u)
	})

	c.Open()
	tr.Push(1, elero.StatusTopPositionStop)

	require.Len(t, updates, 2)
	assert.Equal(t, StateOpening, updates[0].State)
	assert.Equal(t, StateOpen, updates[1].State)
	require.NotNil(t, updates[1].Position)
	assert.Equal(t, PositionOpen, *updates[1].Position)
}
