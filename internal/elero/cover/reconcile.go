package cover

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/valentingc/elero2mqtt/internal/elero"
)

// handleStatus is the transmitter's status callback: the sole asynchronous
// input to the state machine. Each status is applied synchronously to
// completion, in arrival order.
func (c *Cover) handleStatus(status elero.Status) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.applyStatus(status)
}

// applyStatus maps an incoming status code to the authoritative state
// transition. It overrides the optimistic model from the command path except
// where a pending set-position completion owns the final value. Called with
// the lock held.
func (c *Cover) applyStatus(status elero.Status) {
	c.lastStatus = status

	switch status {
	case elero.StatusNoInformation:
		c.resetUnknown()
	case elero.StatusTopPositionStop:
		c.settleStatus(StateOpen, PositionOpen, PositionUndefined, false)
	case elero.StatusBottomPositionStop:
		c.settleStatus(StateClosed, PositionClosed, PositionUndefined, true)
	case elero.StatusIntermediatePositionStop:
		c.settleStatus(StateIntermediate, PositionIntermediate, PositionIntermediate, false)
	case elero.StatusTiltVentilationPosStop:
		c.settleStatus(StateTiltVentilation, PositionTiltVentilation, PositionTiltVentilation, false)
	case elero.StatusTopPosStopWithTiltPos:
		c.settleStatus(StateTiltVentilation, PositionTiltVentilation, PositionTiltVentilation, false)
	case elero.StatusBottomPosStopWithIntPos:
		c.settleStatus(StateIntermediate, PositionIntermediate, PositionIntermediate, true)
	case elero.StatusStartToMoveUp, elero.StatusMovingUp:
		c.observeMoving(MovementOpening)
	case elero.StatusStartToMoveDown, elero.StatusMovingDown:
		c.observeMoving(MovementClosing)
	case elero.StatusStoppedInUndefinedPosition:
		c.settleUndefined()
	case elero.StatusBlocking, elero.StatusOverheated, elero.StatusTimeout:
		c.resetUnknown()
		logrus.Errorf("transmitter %s ch %d: error response: %s",
			c.transmitter.SerialNumber(), c.channel, status)
	case elero.StatusSwitchingDeviceSwitchedOn, elero.StatusSwitchingDeviceSwitchedOff:
		c.resetUnknown()
	default:
		c.resetUnknown()
		logrus.Errorf("transmitter %s ch %d: unhandled response: %s",
			c.transmitter.SerialNumber(), c.channel, status)
	}

	if c.position != nil {
		c.lastKnown = intPtr(*c.position)
	}

	c.notify()
}

// settleStatus applies an authoritative stop condition.
func (c *Cover) settleStatus(state string, position, tilt int, closed bool) {
	c.invalidate()
	c.startTime = time.Time{}
	c.movement = MovementIdle
	c.state = state
	c.position = intPtr(position)
	c.tmpPosition = floatPtr(float64(position))
	c.tiltPosition = intPtr(tilt)
	c.closed = boolPtr(closed)
}

// observeMoving confirms motion. The optimistic end-stop position stays in
// place unless a set-position completion is pending, in which case the
// completion owns the final value.
func (c *Cover) observeMoving(m Movement) {
	c.movement = m
	c.closed = boolPtr(false)
	c.tiltPosition = intPtr(PositionUndefined)

	if m == MovementOpening {
		c.state = StateOpening
		if c.lastOp != opSetPosition {
			c.position = intPtr(PositionOpen)
		}
	} else {
		c.state = StateClosing
		if c.lastOp != opSetPosition {
			c.position = intPtr(PositionClosed)
		}
	}
}

// settleUndefined handles the one status that requires estimation: the
// actuator stopped but cannot say where. Position is interpolated from the
// snapshot taken at command time, the elapsed travel and the direction; with
// no usable base the undefined midpoint is reported.
func (c *Cover) settleUndefined() {
	c.invalidate()

	pos := PositionUndefined
	if c.tmpPosition != nil {
		est := Estimate(*c.tmpPosition, c.elapsedSeconds(), c.travelTime.Seconds(), c.movement)
		pos = int(est + 0.5)
	}

	c.startTime = time.Time{}
	c.movement = MovementIdle
	c.position = intPtr(pos)
	c.tmpPosition = floatPtr(float64(pos))
	c.tiltPosition = intPtr(PositionUndefined)
	c.closed = boolPtr(pos == PositionClosed)

	switch pos {
	case PositionClosed:
		c.state = StateClosed
	case PositionOpen:
		c.state = StateOpen
	default:
		c.state = StateStopped
	}
}

// resetUnknown drops every observable to unknown. The last known position is
// kept so a later set-position still has a base.
func (c *Cover) resetUnknown() {
	c.invalidate()
	c.startTime = time.Time{}
	c.movement = MovementIdle
	c.state = StateUnknown
	c.position = nil
	c.tmpPosition = nil
	c.tiltPosition = nil
	c.closed = nil
}
