package link

import "fmt"

// EventKind tells what a Link Event is about.
type EventKind uint8

const (
	// EventDataAvailable signals new raw bytes waiting in ReadAvailable.
	EventDataAvailable EventKind = iota + 1

	// EventBatteryChanged carries one battery sample (Voltage and Current).
	EventBatteryChanged

	// EventPositionChanged carries one decoded position (Latitude, Longitude
	// and RelativeAltitude).
	EventPositionChanged

	// EventFlightLogReady carries one status text message (Text).
	EventFlightLogReady

	// EventStatusChanged carries a transport lifecycle change (Status and Err).
	EventStatusChanged
)

func (k EventKind) String() string {
	switch k {
	case EventDataAvailable:
		return "data-available"
	case EventBatteryChanged:
		return "battery-changed"
	case EventPositionChanged:
		return "position-changed"
	case EventFlightLogReady:
		return "flight-log-ready"
	case EventStatusChanged:
		return "status-changed"
	default:
		return fmt.Sprintf("event(%d)", uint8(k))
	}
}

// Event is a notification raised by a Link.
type Event struct {
	Kind EventKind

	// battery sample, EventBatteryChanged only
	Voltage int // millivolts
	Current int // milliamps

	// position sample, EventPositionChanged only
	Latitude         float64 // degrees
	Longitude        float64 // degrees
	RelativeAltitude float64 // meters above home

	// EventFlightLogReady only
	Text string

	// EventStatusChanged only
	Status Status
	Err    error
}

// Status is the lifecycle state of the Link's transport.
type Status uint8

const (
	StatusUnknown Status = iota
	StatusUp
	StatusUnavailable
	StatusDegraded
)

func (s Status) String() string {
	switch s {
	case StatusUp:
		return "up"
	case StatusUnavailable:
		return "unavailable"
	case StatusDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// StatusEvent builds an EventStatusChanged.
func StatusEvent(s Status, err error) Event {
	return Event{Kind: EventStatusChanged, Status: s, Err: err}
}
