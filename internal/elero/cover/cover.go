package cover

import (
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/valentingc/elero2mqtt/internal/elero"
)

// Feature flags a channel can be configured with.
type Feature uint16

const (
	FeatureOpen Feature = 1 << iota
	FeatureClose
	FeatureStop
	FeatureSetPosition
	FeatureOpenTilt
	FeatureCloseTilt
	FeatureStopTilt
	FeatureSetTiltPosition
)

var featureTokens = map[string]Feature{
	"open":              FeatureOpen,
	"close":             FeatureClose,
	"stop":              FeatureStop,
	"set_position":      FeatureSetPosition,
	"open_tilt":         FeatureOpenTilt,
	"close_tilt":        FeatureCloseTilt,
	"stop_tilt":         FeatureStopTilt,
	"set_tilt_position": FeatureSetTiltPosition,
}

// ParseFeatures maps configuration tokens onto feature flags.
func ParseFeatures(tokens []string) (Feature, error) {
	var f Feature
	for _, token := range tokens {
		flag, found := featureTokens[token]
		if !found {
			return 0, errors.Errorf("%s is not a supported feature", token)
		}
		f |= flag
	}
	return f, nil
}

// Configurable device classes mapped to the coarser category a cover is
// surfaced as.
var deviceClasses = map[string]string{
	"awning":           "window",
	"interior shading": "window",
	"roller shutter":   "window",
	"rolling door":     "garage",
	"venetian blind":   "window",
}

// Update is pushed to the registered handler after every state change.
type Update struct {
	State        string
	Position     *int
	TiltPosition *int
	Closed       *bool

	// Attributes is the full restorable attribute set at the time of the
	// update, for hosts that persist it.
	Attributes Snapshot
}

// UpdateHandler receives state change notifications.
type UpdateHandler func(u Update)

// Cover is the controller for one transmitter channel. It optimistically
// models position and motion the moment a command is issued, reconciles that
// model against asynchronous status codes from the hardware, and estimates
// position from elapsed time when the actuator stops somewhere it cannot
// report.
//
// All entry points (commands, status callbacks, timer firings) are serialized
// through one mutex; events apply synchronously to completion. A scheduled
// callback carries the command-sequence token captured at arm time and does
// nothing when a newer command has superseded it.
type Cover struct {
	transmitter elero.Transmitter
	name        string
	channel     int
	deviceClass string
	features    Feature
	travelTime  time.Duration
	available   bool

	clock clock

	mu            sync.Mutex
	position      *int
	tiltPosition  *int
	closed        *bool
	lastKnown     *int
	tmpPosition   *float64
	movement      Movement
	lastOp        operation
	startTime     time.Time
	state         string
	lastStatus    elero.Status
	seq           uint64
	pending       timer
	updateHandler UpdateHandler
}

// New validates the channel configuration, registers the status callback on
// the transmitter and returns the controller. Any validation failure means
// the channel is not created.
func New(transmitter elero.Transmitter, name string, channel int, deviceClass string, features []string, travelTime time.Duration) (*Cover, error) {
	if transmitter == nil {
		return nil, errors.Errorf("%s: transmitter is required", name)
	}
	if channel < 1 || channel > 15 {
		return nil, errors.Errorf("%s: channel %d is out of the 1-15 range", name, channel)
	}
	if travelTime <= 0 {
		return nil, errors.Errorf("%s: travel time %s must be positive", name, travelTime)
	}

	class, found := deviceClasses[deviceClass]
	if !found {
		return nil, errors.Errorf("%s: %s is not a supported device class", name, deviceClass)
	}

	f, err := ParseFeatures(features)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", name)
	}

	c := &Cover{
		transmitter: transmitter,
		name:        name,
		channel:     channel,
		deviceClass: class,
		features:    f,
		travelTime:  travelTime,
		clock:       realClock{},
		state:       StateUnknown,
	}
	c.available = transmitter.SetChannel(channel, c.handleStatus)

	return c, nil
}

func (c *Cover) Name() string        { return c.name }
func (c *Cover) Channel() int        { return c.channel }
func (c *Cover) DeviceClass() string { return c.deviceClass }
func (c *Cover) Available() bool     { return c.available }

func (c *Cover) Supports(f Feature) bool {
	return c.features&f != 0
}

// UniqueID identifies the channel across restarts: transmitter serial plus
// channel number.
func (c *Cover) UniqueID() string {
	return fmt.Sprintf("%s_%d", c.transmitter.SerialNumber(), c.channel)
}

func (c *Cover) TravelTime() time.Duration {
	return c.travelTime
}

func (c *Cover) OnUpdate(h UpdateHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updateHandler = h
}

// Position returns the current cover position, false when unknown.
func (c *Cover) Position() (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.position == nil {
		return 0, false
	}
	return *c.position, true
}

// TiltPosition returns the current tilt position, false when unknown.
func (c *Cover) TiltPosition() (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tiltPosition == nil {
		return 0, false
	}
	return *c.tiltPosition, true
}

// LastKnownPosition returns the last position believed accurate enough to
// base an estimate on, false when none exists yet.
func (c *Cover) LastKnownPosition() (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastKnown == nil {
		return 0, false
	}
	return *c.lastKnown, true
}

func (c *Cover) Movement() Movement {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.movement
}

func (c *Cover) IsOpening() bool {
	return c.Movement() == MovementOpening
}

func (c *Cover) IsClosing() bool {
	return c.Movement() == MovementClosing
}

// IsClosed returns whether the cover is closed, false second value when
// unknown.
func (c *Cover) IsClosed() (bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed == nil {
		return false, false
	}
	return *c.closed, true
}

// State returns the composite state label.
func (c *Cover) State() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastStatus returns the most recent raw status code, for diagnostics.
func (c *Cover) LastStatus() elero.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastStatus
}

// Update requests a fresh status read. State only changes once the
// transmitter answers through the status callback.
func (c *Cover) Update() {
	c.transmitter.Info(c.channel)
}

// Open drives the cover to the top end-stop.
func (c *Cover) Open() {
	logrus.Infof("%s: open", c.name)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.move(MovementOpening, opOpen, false)
	c.armTimer(c.travelTime, c.pollAfterTravel)
	c.notify()
}

// Close drives the cover to the bottom end-stop.
func (c *Cover) Close() {
	logrus.Infof("%s: close", c.name)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.move(MovementClosing, opClose, false)
	c.armTimer(c.travelTime, c.pollAfterTravel)
	c.notify()
}

// Stop halts the cover and folds the elapsed travel into the position
// estimate. Any pending completion callback is invalidated.
func (c *Cover) Stop() {
	logrus.Infof("%s: stop", c.name)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.stop()
	c.notify()
}

// SetPosition moves the cover to target by driving toward it for the
// proportional share of the travel time and stopping. It requires a known
// last position as the base.
func (c *Cover) SetPosition(target int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if target < PositionClosed || target > PositionOpen {
		return errors.Errorf("%s: position %d is out of the 0-100 range", c.name, target)
	}
	if c.lastKnown == nil {
		return errors.Errorf("%s: cannot set position, last known position is unavailable", c.name)
	}

	current := *c.lastKnown
	if target == current {
		logrus.Infof("%s: already at position %d", c.name, target)
		return nil
	}

	diff := target - current
	if diff < 0 {
		diff = -diff
	}
	moveTime := time.Duration(float64(diff) / 100 * float64(c.travelTime))
	logrus.Debugf("%s: move from %d to %d takes %s", c.name, current, target, moveTime)

	if target > current {
		c.move(MovementOpening, opSetPosition, true)
	} else {
		c.move(MovementClosing, opSetPosition, true)
	}

	c.armTimer(moveTime, func() {
		c.finishSetPosition(target)
	})
	c.notify()

	return nil
}

// VentilationTiltingPosition drives the cover into its fixed ventilation or
// tilted position.
func (c *Cover) VentilationTiltingPosition() {
	logrus.Infof("%s: ventilation/tilting position", c.name)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.transmitter.VentilationTilting(c.channel)
	c.settleCommand(StateTiltVentilation, PositionTiltVentilation, PositionTiltVentilation)
	c.notify()
}

// IntermediatePosition drives the cover into its fixed intermediate position.
func (c *Cover) IntermediatePosition() {
	logrus.Infof("%s: intermediate position", c.name)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.transmitter.Intermediate(c.channel)
	c.settleCommand(StateIntermediate, PositionIntermediate, PositionIntermediate)
	c.notify()
}

// OpenTilt opens the tilt, which on this hardware is the intermediate
// position.
func (c *Cover) OpenTilt() {
	c.IntermediatePosition()
}

// CloseTilt closes the tilt, which on this hardware is the ventilation or
// tilted position.
func (c *Cover) CloseTilt() {
	c.VentilationTiltingPosition()
}

func (c *Cover) StopTilt() {
	c.Stop()
}

// SetTiltPosition maps the continuous slider onto the two discrete tilt
// stops. The exact midpoint is ambiguous and rejected.
func (c *Cover) SetTiltPosition(target int) error {
	if target < PositionClosed || target > PositionOpen {
		return errors.Errorf("%s: tilt position %d is out of the 0-100 range", c.name, target)
	}

	switch {
	case target < PositionUndefined:
		c.VentilationTiltingPosition()
	case target > PositionUndefined:
		c.IntermediatePosition()
	default:
		return errors.Errorf("%s: tilt position %d is ambiguous", c.name, target)
	}

	return nil
}

// move transmits the radio command for the direction and applies the
// optimistic state transition. Callers hold the lock and arm their own
// completion callback. suppressPosition keeps the optimistic end-stop write
// out when a set-position completion owns the final value.
func (c *Cover) move(m Movement, op operation, suppressPosition bool) {
	if m == MovementOpening {
		c.transmitter.Up(c.channel)
	} else {
		c.transmitter.Down(c.channel)
	}

	c.snapshotBase()
	c.movement = m
	c.lastOp = op
	c.closed = boolPtr(false)
	c.tiltPosition = intPtr(PositionUndefined)
	c.startTime = c.clock.Now()

	if m == MovementOpening {
		c.state = StateOpening
		if !suppressPosition {
			c.position = intPtr(PositionOpen)
		}
	} else {
		c.state = StateClosing
		if !suppressPosition {
			c.position = intPtr(PositionClosed)
		}
	}
}

func (c *Cover) stop() {
	c.transmitter.Stop(c.channel)
	c.invalidate()

	if c.movement != MovementIdle && c.tmpPosition != nil {
		est := Estimate(*c.tmpPosition, c.elapsedSeconds(), c.travelTime.Seconds(), c.movement)
		c.setPositionEstimate(est)
	}

	c.startTime = time.Time{}
	c.movement = MovementIdle
	c.lastOp = opStop
	c.closed = boolPtr(false)
	c.tiltPosition = intPtr(PositionUndefined)
	c.state = StateStopped
}

// finishSetPosition runs as the scheduled completion of SetPosition: stop the
// motor and pin the target as the authoritative position.
func (c *Cover) finishSetPosition(target int) {
	logrus.Debugf("%s: set position complete, pinning %d", c.name, target)

	c.transmitter.Stop(c.channel)
	c.startTime = time.Time{}
	c.movement = MovementIdle
	c.lastOp = opStop

	c.position = intPtr(target)
	c.lastKnown = intPtr(target)
	c.tmpPosition = floatPtr(float64(target))
	c.closed = boolPtr(target == PositionClosed)
	c.tiltPosition = intPtr(PositionUndefined)

	switch target {
	case PositionOpen:
		c.state = StateOpen
	case PositionClosed:
		c.state = StateClosed
	default:
		c.state = StateStopped
	}

	c.notify()
}

// settleCommand applies the optimistic state for the fixed tilt positions.
func (c *Cover) settleCommand(state string, position, tilt int) {
	c.invalidate()
	c.startTime = time.Time{}
	c.movement = MovementIdle
	c.lastOp = opTilt
	c.closed = boolPtr(false)
	c.state = state
	c.position = intPtr(position)
	c.tiltPosition = intPtr(tilt)
}

// pollAfterTravel fires once the full travel time of an Open/Close has
// passed; the actuator should have reached the end-stop, so ask it.
func (c *Cover) pollAfterTravel() {
	logrus.Debugf("%s: travel time passed, polling status", c.name)
	c.transmitter.Info(c.channel)
}

// snapshotBase records the position the current motion starts from, the base
// for later time-based interpolation. Falls back to the last known position
// when the current one is unknown.
func (c *Cover) snapshotBase() {
	switch {
	case c.position != nil:
		c.tmpPosition = floatPtr(float64(*c.position))
	case c.lastKnown != nil:
		c.tmpPosition = floatPtr(float64(*c.lastKnown))
	default:
		c.tmpPosition = nil
	}
}

func (c *Cover) setPositionEstimate(est float64) {
	pos := int(est + 0.5)
	c.position = intPtr(pos)
	c.lastKnown = intPtr(pos)
	c.tmpPosition = floatPtr(est)
}

func (c *Cover) elapsedSeconds() float64 {
	if c.startTime.IsZero() {
		return 0
	}
	return c.clock.Now().Sub(c.startTime).Seconds()
}

// armTimer schedules f after d, replacing any outstanding timer. The fired
// callback re-checks the sequence token under the lock so a superseded timer
// never mutates state.
func (c *Cover) armTimer(d time.Duration, f func()) {
	c.invalidate()

	token := c.seq
	c.pending = c.clock.AfterFunc(d, func() {
		c.mu.Lock()
		defer c.mu.Unlock()

		if token != c.seq {
			logrus.Debugf("%s: stale completion timer ignored", c.name)
			return
		}
		c.pending = nil
		f()
	})
}

// invalidate supersedes any outstanding scheduled callback.
func (c *Cover) invalidate() {
	c.seq++
	if c.pending != nil {
		c.pending.Stop()
		c.pending = nil
	}
}

// notify pushes the current state to the registered handler. Called with the
// lock held; handlers must not call back into the cover.
func (c *Cover) notify() {
	if c.updateHandler == nil {
		return
	}

	c.updateHandler(Update{
		State:        c.state,
		Position:     copyInt(c.position),
		TiltPosition: copyInt(c.tiltPosition),
		Closed:       copyBool(c.closed),
		Attributes:   c.snapshotLocked(),
	})
}

func intPtr(v int) *int {
	return &v
}

func boolPtr(v bool) *bool {
	return &v
}

func floatPtr(v float64) *float64 {
	return &v
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func copyBool(v *bool) *bool {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
