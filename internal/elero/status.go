package elero

// Status is a raw condition report from the actuator hardware. Codes are
// coarse-grained: they describe the actuator's physical situation, never a
// numeric position. The type is stringly kept so that codes outside the known
// taxonomy survive intact for diagnostics.
type Status string

const (
	StatusNoInformation              Status = "no information"
	StatusTopPositionStop            Status = "top position stop"
	StatusBottomPositionStop         Status = "bottom position stop"
	StatusIntermediatePositionStop   Status = "intermediate position stop"
	StatusTiltVentilationPosStop     Status = "tilt ventilation position stop"
	StatusBlocking                   Status = "blocking"
	StatusOverheated                 Status = "overheated"
	StatusTimeout                    Status = "timeout"
	StatusStartToMoveUp              Status = "start to move up"
	StatusStartToMoveDown            Status = "start to move down"
	StatusMovingUp                   Status = "moving up"
	StatusMovingDown                 Status = "moving down"
	StatusStoppedInUndefinedPosition Status = "stopped in undefined position"
	StatusTopPosStopWithTiltPos      Status = "top position stop wich is tilt position"
	StatusBottomPosStopWithIntPos    Status = "bottom position stop wich is intermediate position"
	StatusSwitchingDeviceSwitchedOn  Status = "switching device switched on"
	StatusSwitchingDeviceSwitchedOff Status = "switching device switched off"
)

// IsFault reports whether the code signals a device fault the controller
// cannot recover on its own (the actuator may, on the next cycle).
func (s Status) IsFault() bool {
	switch s {
	case StatusBlocking, StatusOverheated, StatusTimeout:
		return true
	}
	return false
}

// Known reports whether the code belongs to the known taxonomy.
func (s Status) Known() bool {
	switch s {
	case StatusNoInformation,
		StatusTopPositionStop,
		StatusBottomPositionStop,
		StatusIntermediatePositionStop,
		StatusTiltVentilationPosStop,
		StatusBlocking,
		StatusOverheated,
		StatusTimeout,
		StatusStartToMoveUp,
		StatusStartToMoveDown,
		StatusMovingUp,
		StatusMovingDown,
		StatusStoppedInUndefinedPosition,
		StatusTopPosStopWithTiltPos,
		StatusBottomPosStopWithIntPos,
		StatusSwitchingDeviceSwitchedOn,
		StatusSwitchingDeviceSwitchedOff:
		return true
	}
	return false
}

func (s Status) String() string {
	return string(s)
}
