package vehicle

import (
	"fmt"

	"github.com/roman-kulish/groundlink/internal/link"
)

// fakeLink records every command and serves canned telemetry.
type fakeLink struct {
	calls []string

	pending []byte
	decoded []link.Event
	fed     [][]byte

	latitude, longitude, altitude float64
	voltage, current              int
	statusText                    string

	failWith error
	events   chan link.Event
}

func newFakeLink() *fakeLink {
	return &fakeLink{events: make(chan link.Event, 16)}
}

func (f *fakeLink) ReadAvailable() []byte {
	data := f.pending
	f.pending = nil
	return data
}

func (f *fakeLink) Feed(data []byte) []link.Event {
	f.fed = append(f.fed, data)
	events := f.decoded
	f.decoded = nil
	return events
}

func (f *fakeLink) SetAxis(ch link.Channel, value int) error {
	f.calls = append(f.calls, fmt.Sprintf("axis %s=%d", ch, value))
	return f.failWith
}

func (f *fakeLink) Arm() error {
	f.calls = append(f.calls, "arm")
	return f.failWith
}

func (f *fakeLink) Disarm() error {
	f.calls = append(f.calls, "disarm")
	return f.failWith
}

func (f *fakeLink) SetMode(m link.Mode) error {
	f.calls = append(f.calls, "mode "+m.String())
	return f.failWith
}

func (f *fakeLink) Latitude() float64         { return f.latitude }
func (f *fakeLink) Longitude() float64        { return f.longitude }
func (f *fakeLink) RelativeAltitude() float64 { return f.altitude }
func (f *fakeLink) Battery() (int, int)       { return f.voltage, f.current }
func (f *fakeLink) StatusText() string        { return f.statusText }
func (f *fakeLink) Events() <-chan link.Event { return f.events }

// recorder collects notifications for assertions.
type recorder struct {
	events []Event
}

func (r *recorder) observe(ev Event) {
	r.events = append(r.events, ev)
}

func (r *recorder) kinds() []Kind {
	kinds := make([]Kind, len(r.events))
	for i, ev := range r.events {
		kinds[i] = ev.Kind
	}
	return kinds
}
