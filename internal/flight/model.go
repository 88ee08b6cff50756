package flight

import (
	"time"
)

// Session represents a single run of the ground station against one vehicle
// link. Everything the recorder stores belongs to a session.
type Session struct {
	ID        int64     `json:"ID"`                      // Unique identifier for the session
	StartTime time.Time `json:"startTime"`               // When the session began
	Transport string    `json:"transport"`               // Transport kind (e.g., "serial", "udp")
	Endpoint  string    `json:"endpoint"`                // Transport endpoint (e.g., "/dev/ttyUSB0", ":14550")
	Config    *string   `json:"config,string,omitempty"` // Optional link configuration in JSON format
}

// Event is a recorded change notification.
type Event struct {
	Timestamp time.Time `json:"timestamp"`        // When the change was observed
	Kind      string    `json:"kind"`             // What changed (e.g., "latitude", "log")
	Value     string    `json:"value"`            // New value, formatted as text
	Detail    string    `json:"detail,omitempty"` // Reason or error, for link status and command failures
}

// TrackPoint is one recorded position and battery sample.
type TrackPoint struct {
	Timestamp        time.Time `json:"timestamp"`
	Latitude         float64   `json:"latitude"`         // Degrees
	Longitude        float64   `json:"longitude"`        // Degrees
	RelativeAltitude float64   `json:"relativeAltitude"` // Meters above home
	Voltage          int       `json:"voltage"`          // Millivolts
	Current          int       `json:"current"`          // Milliamps
}

// HasFix reports whether the point carries a position. The vehicle reports
// 0/0 until it has a GPS fix.
func (p TrackPoint) HasFix() bool {
	return p.Latitude != 0 || p.Longitude != 0
}
