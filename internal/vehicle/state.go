package vehicle

import (
	"math"
	"time"

	"github.com/roman-kulish/groundlink/internal/link"
	"github.com/roman-kulish/groundlink/internal/telemetry"
)

// Tolerance is the absolute difference below which a floating-point
// measurement counts as unchanged.
const Tolerance = 0.001

// State is the bridge's mirrored copy of the vehicle state. Every field has a
// single setter which stores the value and emits one event only when the
// value actually changed. State is not safe for concurrent use.
type State struct {
	log  string
	axes [len(link.Channels)]int

	voltage int // millivolts
	current int // milliamps

	latitude  float64
	longitude float64
	height    float64 // relative altitude, meters

	linkStatus string
	linkDetail string

	emit func(Event)
}

// NewState returns a zero-valued State that reports changes to emit.
func NewState(emit func(Event)) *State {
	if emit == nil {
		emit = func(Event) {}
	}
	return &State{
		linkStatus: link.StatusUnknown.String(),
		emit:       emit,
	}
}

func (s *State) Log() string        { return s.log }
func (s *State) X() int             { return s.axes[link.ChannelX] }
func (s *State) Y() int             { return s.axes[link.ChannelY] }
func (s *State) Z() int             { return s.axes[link.ChannelZ] }
func (s *State) R() int             { return s.axes[link.ChannelR] }
func (s *State) Voltage() int       { return s.voltage }
func (s *State) Current() int       { return s.current }
func (s *State) Latitude() float64  { return s.latitude }
func (s *State) Longitude() float64 { return s.longitude }
func (s *State) Height() float64    { return s.height }
func (s *State) LinkStatus() string { return s.linkStatus }
func (s *State) LinkDetail() string { return s.linkDetail }

// Axis returns the stored value of ch, zero for an unknown channel.
func (s *State) Axis(ch link.Channel) int {
	if !ch.Valid() {
		return 0
	}
	return s.axes[ch]
}

func (s *State) SetLog(text string) {
	if s.log == text {
		return
	}
	s.log = text
	s.emit(Event{Kind: LogChanged, Text: text})
}

// SetAxis stores a manual control value. Unknown channels are ignored; the
// dispatcher rejects them before they get here.
func (s *State) SetAxis(ch link.Channel, value int) {
	if !ch.Valid() || s.axes[ch] == value {
		return
	}
	s.axes[ch] = value
	s.emit(Event{Kind: axisKinds[ch], Int: value})
}

func (s *State) SetX(v int) { s.SetAxis(link.ChannelX, v) }
func (s *State) SetY(v int) { s.SetAxis(link.ChannelY, v) }
func (s *State) SetZ(v int) { s.SetAxis(link.ChannelZ, v) }
func (s *State) SetR(v int) { s.SetAxis(link.ChannelR, v) }

// SetBattery applies one battery sample. Both halves are compared against the
// stored values and each emits its own event, voltage first.
func (s *State) SetBattery(voltage, current int) {
	s.setInt(&s.voltage, voltage, VoltageChanged)
	s.setInt(&s.current, current, CurrentChanged)
}

func (s *State) SetLatitude(v float64)  { s.setFloat(&s.latitude, v, LatitudeChanged) }
func (s *State) SetLongitude(v float64) { s.setFloat(&s.longitude, v, LongitudeChanged) }
func (s *State) SetHeight(v float64)    { s.setFloat(&s.height, v, HeightChanged) }

// setLinkStatus records a transport status together with its reason.
func (s *State) setLinkStatus(status, detail string) {
	if s.linkStatus == status && s.linkDetail == detail {
		return
	}
	s.linkStatus = status
	s.linkDetail = detail
	s.emit(Event{Kind: LinkStatusChanged, Text: status, Detail: detail})
}

func (s *State) setInt(dst *int, v int, kind Kind) {
	if *dst == v {
		return
	}
	*dst = v
	s.emit(Event{Kind: kind, Int: v})
}

// setFloat never stores NaN: the comparison below is false for it.
func (s *State) setFloat(dst *float64, v float64, kind Kind) {
	if !(math.Abs(*dst-v) > Tolerance) {
		return
	}
	*dst = v
	s.emit(Event{Kind: kind, Float: v})
}

// Snapshot copies the current state.
func (s *State) Snapshot() Snapshot {
	return Snapshot{
		Telemetry: telemetry.Telemetry{
			Timestamp:        time.Now().UTC(),
			Latitude:         s.latitude,
			Longitude:        s.longitude,
			RelativeAltitude: s.height,
			Voltage:          s.voltage,
			Current:          s.current,
			StatusText:       s.log,
			X:                s.axes[link.ChannelX],
			Y:                s.axes[link.ChannelY],
			Z:                s.axes[link.ChannelZ],
			R:                s.axes[link.ChannelR],
		},
		LinkStatus: s.linkStatus,
		LinkDetail: s.linkDetail,
	}
}

// Snapshot is the observable surface at one point in time.
type Snapshot struct {
	telemetry.Telemetry
	LinkStatus string `json:"linkStatus"`
	LinkDetail string `json:"linkDetail,omitempty"`
}
