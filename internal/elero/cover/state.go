package cover

// Composite state labels exposed per channel.
const (
	StateOpen            = "open"
	StateClosed          = "closed"
	StateOpening         = "opening"
	StateClosing         = "closing"
	StateStopped         = "stopped"
	StateIntermediate    = "intermediate"
	StateTiltVentilation = "ventilation/tilt"
	StateUndefined       = "undefined"
	StateUnknown         = "unknown"
)

// Position slider values. The actuator only reports coarse conditions, so
// intermediate and ventilation/tilt stops map to fixed slider values and
// anything the hardware cannot express maps to the undefined midpoint.
const (
	PositionClosed          = 0
	PositionTiltVentilation = 25
	PositionUndefined       = 50
	PositionIntermediate    = 75
	PositionOpen            = 100
)

// Movement is the direction a cover is currently travelling in.
type Movement int

const (
	MovementIdle Movement = iota
	MovementOpening
	MovementClosing
)

func (m Movement) String() string {
	switch m {
	case MovementOpening:
		return "opening"
	case MovementClosing:
		return "closing"
	}
	return "idle"
}

type operation int

const (
	opNone operation = iota
	opOpen
	opClose
	opStop
	opSetPosition
	opTilt
)
