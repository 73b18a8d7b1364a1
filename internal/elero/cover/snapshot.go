package cover

import "github.com/valentingc/elero2mqtt/internal/elero"

// Snapshot is the restorable attribute set of a channel. It is what survives
// a process restart; the hosting side decides where it lives (the MQTT bridge
// keeps it on a retained topic).
type Snapshot struct {
	Position          *int     `json:"position,omitempty"`
	LastKnownPosition *int     `json:"last_known_position,omitempty"`
	TmpPosition       *float64 `json:"tmp_position,omitempty"`
	TiltPosition      *int     `json:"tilt_position,omitempty"`
	IsOpening         bool     `json:"is_opening"`
	IsClosing         bool     `json:"is_closing"`
	Closed            *bool    `json:"closed,omitempty"`
	LastStatus        string   `json:"elero_state,omitempty"`
	TravelTimeSeconds float64  `json:"travel_time"`
}

// Snapshot captures the current restorable attributes.
func (c *Cover) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.snapshotLocked()
}

func (c *Cover) snapshotLocked() Snapshot {
	return Snapshot{
		Position:          copyInt(c.position),
		LastKnownPosition: copyInt(c.lastKnown),
		TmpPosition:       copyFloat(c.tmpPosition),
		TiltPosition:      copyInt(c.tiltPosition),
		IsOpening:         c.movement == MovementOpening,
		IsClosing:         c.movement == MovementClosing,
		Closed:            copyBool(c.closed),
		LastStatus:        string(c.lastStatus),
		TravelTimeSeconds: c.travelTime.Seconds(),
	}
}

// RestoreSnapshot applies attributes persisted before a restart. Absent
// fields fall back to the neutral defaults: the undefined midpoint for
// positions, false for flags. In-flight motion does not survive a restart;
// the next poll reconciles it.
func (c *Cover) RestoreSnapshot(s Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.position = restoreInt(s.Position)
	c.lastKnown = restoreInt(s.LastKnownPosition)
	c.tiltPosition = restoreInt(s.TiltPosition)
	c.closed = boolPtr(s.Closed != nil && *s.Closed)

	if s.TmpPosition != nil {
		c.tmpPosition = floatPtr(*s.TmpPosition)
	} else {
		c.tmpPosition = floatPtr(PositionUndefined)
	}

	c.lastStatus = elero.Status(s.LastStatus)
	c.movement = MovementIdle

	switch {
	case *c.closed:
		c.state = StateClosed
	case *c.position == PositionOpen:
		c.state = StateOpen
	case *c.position == PositionClosed:
		c.state = StateClosed
	default:
		c.state = StateStopped
	}

	c.notify()
}

func restoreInt(v *int) *int {
	if v == nil {
		return intPtr(PositionUndefined)
	}
	return intPtr(*v)
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
