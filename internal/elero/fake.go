package elero

import "fmt"

// FakeTransmitter records commands and lets tests push status codes through
// the registered callbacks.
type FakeTransmitter struct {
	// Serial is returned by SerialNumber.
	Serial string

	// Commands contains every command sent, as "up 1", "stop 3", ...
	Commands []string

	// Unavailable makes SetChannel report the channel as unavailable.
	Unavailable bool

	callbacks map[int]StatusCallback
}

func NewFakeTransmitter(serial string) *FakeTransmitter {
	return &FakeTransmitter{Serial: serial, callbacks: map[int]StatusCallback{}}
}

func (f *FakeTransmitter) SetChannel(channel int, cb StatusCallback) bool {
	if f.callbacks == nil {
		f.callbacks = map[int]StatusCallback{}
	}
	f.callbacks[channel] = cb
	return !f.Unavailable
}

func (f *FakeTransmitter) SerialNumber() string {
	return f.Serial
}

func (f *FakeTransmitter) Up(channel int)   { f.record("up", channel) }
func (f *FakeTransmitter) Down(channel int) { f.record("down", channel) }
func (f *FakeTransmitter) Stop(channel int) { f.record("stop", channel) }

func (f *FakeTransmitter) VentilationTilting(channel int) {
	f.record("ventilation_tilting", channel)
}

func (f *FakeTransmitter) Intermediate(channel int) {
	f.record("intermediate", channel)
}

func (f *FakeTransmitter) Info(channel int) {
	f.record("info", channel)
}

// Push makes the transmitter report a status to the channel's callback, as
// the hardware would asynchronously.
func (f *FakeTransmitter) Push(channel int, status Status) {
	if cb := f.callbacks[channel]; cb != nil {
		cb(status)
	}
}

func (f *FakeTransmitter) record(cmd string, channel int) {
	f.Commands = append(f.Commands, fmt.Sprintf("%s %d", cmd, channel))
}
