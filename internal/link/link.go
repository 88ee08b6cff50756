package link

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned by command operations while no transport is attached
	ErrNotConnected = errors.New("link not connected")

	// ErrTooManyParseErrors is reported when the decoder sees too many consecutive bad frames
	ErrTooManyParseErrors = errors.New("too many consecutive parse errors")
)

// Link is the narrow capability set the bridge consumes. A Link owns its
// transport and its protocol decoder; the bridge never sees either.
//
// Feed and the telemetry accessors are called from the bridge's event loop
// only. Command operations may block on the transport and report write
// failures through their error result.
type Link interface {
	// ReadAvailable drains and returns every byte buffered since the last
	// EventDataAvailable. It returns nil when nothing is pending.
	ReadAvailable() []byte

	// Feed hands raw bytes to the decoder. The returned events carry what
	// each frame decoded to, in the order the frames were decoded, so several
	// frames in one chunk are never collapsed into the last one.
	Feed(data []byte) []Event

	SetAxis(ch Channel, value int) error
	Arm() error
	Disarm() error
	SetMode(m Mode) error

	// Accessors report the most recent decoded values.
	Latitude() float64         // degrees
	Longitude() float64        // degrees
	RelativeAltitude() float64 // meters above home

	// Battery returns the last battery sample as a pair.
	Battery() (voltageMillivolts, currentMilliamps int)

	StatusText() string

	// Events delivers notifications raised outside of Feed, that is
	// EventDataAvailable and EventStatusChanged.
	Events() <-chan Event
}

// Channel identifies one of the four manual control axes.
type Channel int

const (
	ChannelX Channel = iota
	ChannelY
	ChannelZ
	ChannelR
)

// Channels lists all axes in their canonical order.
var Channels = [...]Channel{ChannelX, ChannelY, ChannelZ, ChannelR}

var channelNames = [...]string{"x", "y", "z", "r"}

func (c Channel) Valid() bool {
	return c >= ChannelX && c <= ChannelR
}

func (c Channel) String() string {
	if !c.Valid() {
		return fmt.Sprintf("channel(%d)", int(c))
	}
	return channelNames[c]
}

// ParseChannel maps an axis name ("x", "y", "z", "r") to its Channel.
func ParseChannel(s string) (Channel, error) {
	for i, name := range channelNames {
		if name == s {
			return Channel(i), nil
		}
	}
	return 0, fmt.Errorf("unknown channel %q", s)
}

// Mode is a flight mode identifier understood by the Link.
type Mode int

const (
	ModeReturn Mode = iota
	ModeManual
	ModeAssistAltitude
	ModeAssistPosition
	ModeAutoMission
	ModeAutoLoiter
)

var modeNames = [...]string{
	ModeReturn:         "RETURN",
	ModeManual:         "MANUAL",
	ModeAssistAltitude: "ASSIST_ALTITUDE",
	ModeAssistPosition: "ASSIST_POSITION",
	ModeAutoMission:    "AUTO_MISSION",
	ModeAutoLoiter:     "AUTO_LOITER",
}

func (m Mode) Valid() bool {
	return m >= ModeReturn && m <= ModeAutoLoiter
}

func (m Mode) String() string {
	if !m.Valid() {
		return fmt.Sprintf("mode(%d)", int(m))
	}
	return modeNames[m]
}
