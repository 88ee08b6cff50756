package telemetry

import (
	"time"
)

// Telemetry is a point-in-time copy of the vehicle state mirrored by the bridge
type Telemetry struct {
	Timestamp        time.Time `json:"timestamp"`        // When the copy was taken
	Latitude         float64   `json:"latitude"`         // GPS latitude in degrees
	Longitude        float64   `json:"longitude"`        // GPS longitude in degrees
	RelativeAltitude float64   `json:"relativeAltitude"` // Altitude above home in meters
	Voltage          int       `json:"voltage"`          // Battery voltage in millivolts
	Current          int       `json:"current"`          // Battery current in milliamps
	StatusText       string    `json:"statusText"`       // Last flight log line
	X                int       `json:"x"`                // Manual control axes as last commanded
	Y                int       `json:"y"`
	Z                int       `json:"z"`
	R                int       `json:"r"`
}
