package elero

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Simulator is an in-process Transmitter that answers commands with a
// plausible status sequence instead of radio traffic. It lets the daemon run
// end-to-end without an Elero stick plugged in.
type Simulator struct {
	serial string
	travel time.Duration

	mu        sync.Mutex
	callbacks map[int]StatusCallback
	last      map[int]Status
	pending   map[int]*time.Timer
}

// NewSimulator creates a simulator with the given serial number. travel is
// the emulated full-travel duration used to delay end-stop reports.
func NewSimulator(serial string, travel time.Duration) *Simulator {
	return &Simulator{
		serial:    serial,
		travel:    travel,
		callbacks: map[int]StatusCallback{},
		last:      map[int]Status{},
		pending:   map[int]*time.Timer{},
	}
}

func (s *Simulator) SetChannel(channel int, cb StatusCallback) bool {
	if channel < 1 || channel > 15 {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks[channel] = cb
	s.last[channel] = StatusNoInformation
	return true
}

func (s *Simulator) SerialNumber() string {
	return s.serial
}

func (s *Simulator) Up(channel int) {
	logrus.Warnf("simulator %s: ch %d up", s.serial, channel)
	s.move(channel, StatusStartToMoveUp, StatusTopPositionStop)
}

func (s *Simulator) Down(channel int) {
	logrus.Warnf("simulator %s: ch %d down", s.serial, channel)
	s.move(channel, StatusStartToMoveDown, StatusBottomPositionStop)
}

func (s *Simulator) Stop(channel int) {
	logrus.Warnf("simulator %s: ch %d stop", s.serial, channel)
	s.settle(channel, StatusStoppedInUndefinedPosition)
}

func (s *Simulator) VentilationTilting(channel int) {
	logrus.Warnf("simulator %s: ch %d ventilation/tilting", s.serial, channel)
	s.settle(channel, StatusTiltVentilationPosStop)
}

func (s *Simulator) Intermediate(channel int) {
	logrus.Warnf("simulator %s: ch %d intermediate", s.serial, channel)
	s.settle(channel, StatusIntermediatePositionStop)
}

func (s *Simulator) Info(channel int) {
	s.mu.Lock()
	cb := s.callbacks[channel]
	last, found := s.last[channel]
	s.mu.Unlock()

	if cb == nil {
		return
	}
	if !found {
		last = StatusNoInformation
	}
	go cb(last)
}

// move reports the start-of-motion code and schedules the end-stop code
// after the emulated travel duration. A newer command on the same channel
// supersedes the scheduled end-stop. Reports are delivered asynchronously,
// the way radio traffic arrives; commands never call back into their caller.
func (s *Simulator) move(channel int, start, done Status) {
	s.mu.Lock()
	cb := s.callbacks[channel]
	if cb == nil {
		s.mu.Unlock()
		return
	}

	s.last[channel] = start
	if t := s.pending[channel]; t != nil {
		t.Stop()
	}
	s.pending[channel] = time.AfterFunc(s.travel, func() {
		s.settle(channel, done)
	})
	s.mu.Unlock()

	go cb(start)
}

func (s *Simulator) settle(channel int, code Status) {
	s.mu.Lock()
	cb := s.callbacks[channel]
	if cb == nil {
		s.mu.Unlock()
		return
	}

	s.last[channel] = code
	if t := s.pending[channel]; t != nil {
		t.Stop()
		delete(s.pending, channel)
	}
	s.mu.Unlock()

	go cb(code)
}
