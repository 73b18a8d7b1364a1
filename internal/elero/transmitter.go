package elero

import (
	"github.com/sirupsen/logrus"
)

// StatusCallback receives asynchronous status reports for a single channel.
type StatusCallback func(status Status)

// Transmitter is one physical Elero radio stick multiplexing up to 15
// channels. Commands are fire-and-forget; the actuator's reaction arrives
// later through the callback registered with SetChannel.
type Transmitter interface {
	// SetChannel registers the status callback for a channel and reports
	// whether the channel is available on this transmitter.
	SetChannel(channel int, cb StatusCallback) bool

	SerialNumber() string

	Up(channel int)
	Down(channel int)
	Stop(channel int)
	VentilationTilting(channel int)
	Intermediate(channel int)

	// Info requests a status refresh; the result arrives asynchronously via
	// the channel's registered callback.
	Info(channel int)
}

// Registry maps transmitter serial numbers to transmitters. It is owned by
// the composition root and passed to whoever needs a lookup; there is no
// process-wide instance.
type Registry struct {
	transmitters map[string]Transmitter
}

func NewRegistry() *Registry {
	return &Registry{transmitters: map[string]Transmitter{}}
}

func (r *Registry) Register(t Transmitter) {
	serial := t.SerialNumber()
	if _, found := r.transmitters[serial]; found {
		logrus.Warnf("transmitter %s registered twice, keeping the last one", serial)
	}
	r.transmitters[serial] = t
}

// Get returns the transmitter with the given serial number, or nil.
func (r *Registry) Get(serial string) Transmitter {
	return r.transmitters[serial]
}

func (r *Registry) Serials() []string {
	serials := make([]string, 0, len(r.transmitters))
	for serial := range r.transmitters {
		serials = append(serials, serial)
	}
	return serials
}
