package cover

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valentingc/elero2mqtt/internal/elero"
)

func TestStopStatuses(t *testing.T) {
	cases := []struct {
		status elero.Status
		state  string
		pos    int
		tilt   int
		closed bool
	}{
		{elero.StatusTopPositionStop, StateOpen, PositionOpen, PositionUndefined, false},
		{elero.StatusBottomPositionStop, StateClosed, PositionClosed, PositionUndefined, true},
		{elero.StatusIntermediatePositionStop, StateIntermediate, PositionIntermediate, PositionIntermediate, false},
		{elero.StatusTiltVentilationPosStop, StateTiltVentilation, PositionTiltVentilation, PositionTiltVentilation, false},
		{elero.StatusTopPosStopWithTiltPos, StateTiltVentilation, PositionTiltVentilation, PositionTiltVentilation, false},
		{elero.StatusBottomPosStopWithIntPos, StateIntermediate, PositionIntermediate, PositionIntermediate, true},
	}

	for _, tc := range cases {
		t.Run(tc.status.String(), func(t *testing.T) {
			c, tr, _ := newTestCover(t)
			// Prior state must not matter.
			c.Open()

			tr.Push(1, tc.status)

			assert.Equal(t, tc.state, c.State())
			assert.Equal(t, tc.pos, pos(c, t))
			tilt, known := c.TiltPosition()
			assert.True(t, known)
			assert.Equal(t, tc.tilt, tilt)
			closed, known := c.IsClosed()
			assert.True(t, known)
			assert.Equal(t, tc.closed, closed)
			assert.Equal(t, MovementIdle, c.Movement())

			last, known := c.LastKnownPosition()
			assert.True(t, known)
			assert.Equal(t, tc.pos, last)
			assert.Equal(t, tc.status, c.LastStatus())
		})
	}
}

func TestMovingStatuses(t *testing.T) {
	t.Run("start to move up", func(t *testing.T) {
		c, tr, _ := newTestCover(t)
		tr.Push(1, elero.StatusStartToMoveUp)

		assert.Equal(t, StateOpening, c.State())
		assert.True(t, c.IsOpening())
		assert.Equal(t, PositionOpen, pos(c, t))
		closed, _ := c.IsClosed()
		assert.False(t, closed)
	})

	t.Run("moving down", func(t *testing.T) {
		c, tr, _ := newTestCover(t)
		tr.Push(1, elero.StatusMovingDown)

		assert.Equal(t, StateClosing, c.State())
		assert.True(t, c.IsClosing())
		assert.Equal(t, PositionClosed, pos(c, t))
	})

	t.Run("pending set position completion keeps the position", func(t *testing.T) {
		c, tr, _ := newTestCover(t)
		c.RestoreSnapshot(Snapshot{
			Position:          intPtr(80),
			LastKnownPosition: intPtr(80),
			TmpPosition:       floatPtr(80),
		})
		require.NoError(t, c.SetPosition(30))

		tr.Push(1, elero.StatusMovingDown)

		assert.Equal(t, StateClosing, c.State())
		assert.Equal(t, 80, pos(c, t), "completion owns the final position")
	})
}

func TestStoppedInUndefinedPosition(t *testing.T) {
	t.Run("halfway open after half the travel time", func(t *testing.T) {
		c, tr, clk := newTestCover(t)
		tr.Push(1, elero.StatusBottomPositionStop)

		c.Open()
		clk.advance(25 * time.Second)
		tr.Push(1, elero.StatusStoppedInUndefinedPosition)

		assert.Equal(t, StateStopped, c.State())
		assert.Equal(t, 50, pos(c, t))
		closed, _ := c.IsClosed()
		assert.False(t, closed)
		last, _ := c.LastKnownPosition()
		assert.Equal(t, 50, last)
	})

	t.Run("zero elapsed keeps the pre-command position", func(t *testing.T) {
		c, tr, _ := newTestCover(t)
		tr.Push(1, elero.StatusBottomPositionStop)

		c.Open()
		tr.Push(1, elero.StatusStoppedInUndefinedPosition)

		assert.Equal(t, PositionClosed, pos(c, t))
		assert.Equal(t, StateClosed, c.State())
		closed, _ := c.IsClosed()
		assert.True(t, closed)
	})

	t.Run("elapsed beyond travel time clamps to the end stop", func(t *testing.T) {
		c, tr, clk := newTestCover(t)
		tr.Push(1, elero.StatusBottomPositionStop)

		c.Open()
		clk.advance(49 * time.Second)
		// Advance past the travel-time poll without answering it yet.
		clk.advance(31 * time.Second)
		tr.Push(1, elero.StatusStoppedInUndefinedPosition)

		assert.Equal(t, PositionOpen, pos(c, t))
		assert.Equal(t, StateOpen, c.State())
	})

	t.Run("no usable base reports the undefined midpoint", func(t *testing.T) {
		c, tr, _ := newTestCover(t)
		tr.Push(1, elero.StatusStoppedInUndefinedPosition)

		assert.Equal(t, PositionUndefined, pos(c, t))
		assert.Equal(t, StateStopped, c.State())
	})
}

func TestNoInformation(t *testing.T) {
	c, tr, _ := newTestCover(t)
	tr.Push(1, elero.StatusTopPositionStop)

	tr.Push(1, elero.StatusNoInformation)

	assert.Equal(t, StateUnknown, c.State())
	_, known := c.Position()
	assert.False(t, known)
	_, known = c.TiltPosition()
	assert.False(t, known)
	_, known = c.IsClosed()
	assert.False(t, known)
}

func TestFaultStatuses(t *testing.T) {
	for _, status := range []elero.Status{elero.StatusBlocking, elero.StatusOverheated, elero.StatusTimeout} {
		t.Run(status.String(), func(t *testing.T) {
			c, tr, _ := newTestCover(t)
			tr.Push(1, elero.StatusTopPositionStop)

			tr.Push(1, status)

			assert.Equal(t, StateUnknown, c.State())
			_, known := c.Position()
			assert.False(t, known)
			_, known = c.IsClosed()
			assert.False(t, known)
			assert.Equal(t, status, c.LastStatus())

			// The stale base survives for the next set position.
			last, known := c.LastKnownPosition()
			assert.True(t, known)
			assert.Equal(t, PositionOpen, last)
		})
	}
}

func TestSwitchingDeviceStatuses(t *testing.T) {
	c, tr, _ := newTestCover(t)
	tr.Push(1, elero.StatusTopPositionStop)

	tr.Push(1, elero.StatusSwitchingDeviceSwitchedOn)

	assert.Equal(t, StateUnknown, c.State())
	_, known := c.Position()
	assert.False(t, known)
}

func TestUnhandledStatus(t *testing.T) {
	c, tr, _ := newTestCover(t)
	tr.Push(1, elero.StatusTopPositionStop)

	tr.Push(1, elero.Status("foo"))

	assert.Equal(t, StateUnknown, c.State())
	_, known := c.Position()
	assert.False(t, known)
	assert.Equal(t, elero.Status("foo"), c.LastStatus())
}

func TestEndStopCancelsPendingCompletion(t *testing.T) {
	c, tr, clk := newTestCover(t)
	tr.Push(1, elero.StatusBottomPositionStop)

	require.NoError(t, c.SetPosition(60))
	// The actuator hits the top end-stop before the scheduled completion.
	tr.Push(1, elero.StatusTopPositionStop)

	clk.advance(2 * 50 * time.Second)

	assert.Equal(t, PositionOpen, pos(c, t))
	assert.Equal(t, StateOpen, c.State())
	assert.NotContains(t, tr.Commands, "stop 1", "superseded completion must not fire")
}
