package vehicle

import (
	"fmt"

	"github.com/roman-kulish/groundlink/internal/link"
	"github.com/roman-kulish/groundlink/internal/telemetry"
)

// Kind identifies what changed.
type Kind uint8

const (
	LogChanged Kind = iota + 1
	XChanged
	YChanged
	ZChanged
	RChanged
	VoltageChanged
	CurrentChanged
	LatitudeChanged
	LongitudeChanged
	HeightChanged
	LinkStatusChanged
	CommandFailed
)

var kindNames = map[Kind]string{
	LogChanged:        "log",
	XChanged:          "x",
	YChanged:          "y",
	ZChanged:          "z",
	RChanged:          "r",
	VoltageChanged:    "voltage",
	CurrentChanged:    "current",
	LatitudeChanged:   "latitude",
	LongitudeChanged:  "longitude",
	HeightChanged:     "height",
	LinkStatusChanged: "linkStatus",
	CommandFailed:     "commandFailed",
}

// axisKinds is indexed by link.Channel.
var axisKinds = [...]Kind{XChanged, YChanged, ZChanged, RChanged}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown event kind %q", s)
}

// Axis reports the control channel an axis event belongs to.
func (k Kind) Axis() (link.Channel, bool) {
	for i, ak := range axisKinds {
		if ak == k {
			return link.Channel(i), true
		}
	}
	return 0, false
}

// Event is a change notification. Exactly one of Int, Float or Text carries
// the new value, depending on Kind. Detail is set for LinkStatusChanged (the
// reason) and CommandFailed (the error).
type Event struct {
	Kind   Kind
	Int    int
	Float  float64
	Text   string
	Detail string
}

// Value returns the new value carried by the event.
func (e Event) Value() any {
	switch e.Kind {
	case XChanged, YChanged, ZChanged, RChanged, VoltageChanged, CurrentChanged:
		return e.Int
	case LatitudeChanged, LongitudeChanged, HeightChanged:
		return e.Float
	default:
		return e.Text
	}
}

func (e Event) String() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s(%v: %s)", e.Kind, e.Value(), e.Detail)
	}
	return fmt.Sprintf("%s(%v)", e.Kind, e.Value())
}

// Apply copies the event's value into t. Events that do not map onto
// telemetry are ignored.
func (e Event) Apply(t *telemetry.Telemetry) {
	switch e.Kind {
	case LogChanged:
		t.StatusText = e.Text
	case XChanged:
		t.X = e.Int
	case YChanged:
		t.Y = e.Int
	case ZChanged:
		t.Z = e.Int
	case RChanged:
		t.R = e.Int
	case VoltageChanged:
		t.Voltage = e.Int
	case CurrentChanged:
		t.Current = e.Int
	case LatitudeChanged:
		t.Latitude = e.Float
	case LongitudeChanged:
		t.Longitude = e.Float
	case HeightChanged:
		t.RelativeAltitude = e.Float
	}
}
