package storage

import (
	"database/sql"
)

type eventData struct {
	SessionID int64
	Timestamp int64 // unix milliseconds
	Kind      string
	Value     string
	Detail    sql.NullString
}

type telemetryData struct {
	SessionID        int64
	Timestamp        int64 // unix milliseconds
	Latitude         float64
	Longitude        float64
	RelativeAltitude float64
	Voltage          int
	Current          int
}
