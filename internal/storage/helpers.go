package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/roman-kulish/groundlink/internal/flight"
	"github.com/roman-kulish/groundlink/internal/telemetry"
)

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}

func rollbackWithError(rb interface{ Rollback() error }, err *error) {
	if cErr := rb.Rollback(); cErr != nil && *err == nil {
		*err = cErr
	}
}

func toEventData(sessionID int64, e flight.Event) *eventData {
	return &eventData{
		SessionID: sessionID,
		Timestamp: e.Timestamp.UnixMilli(),
		Kind:      e.Kind,
		Value:     e.Value,
		Detail: sql.NullString{
			String: e.Detail,
			Valid:  e.Detail != "",
		},
	}
}

func toTelemetryData(sessionID int64, t *telemetry.Telemetry) *telemetryData {
	return &telemetryData{
		SessionID:        sessionID,
		Timestamp:        t.Timestamp.UnixMilli(),
		Latitude:         t.Latitude,
		Longitude:        t.Longitude,
		RelativeAltitude: t.RelativeAltitude,
		Voltage:          t.Voltage,
		Current:          t.Current,
	}
}

// toConfigString accepts a string, []byte or any JSON-serializable value.
func toConfigString(config any) (sql.NullString, error) {
	switch v := config.(type) {
	case nil:
		return sql.NullString{}, nil
	case string:
		return sql.NullString{String: v, Valid: true}, nil
	case []byte:
		return sql.NullString{String: string(v), Valid: true}, nil
	default:
		p, err := json.Marshal(v)
		if err != nil {
			return sql.NullString{}, fmt.Errorf("marshaling config: %w", err)
		}
		return sql.NullString{String: string(p), Valid: true}, nil
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*flight.Session, error) {
	var sess flight.Session
	var config sql.NullString
	if err := row.Scan(&sess.ID, &sess.StartTime, &sess.Transport, &sess.Endpoint, &config); err != nil {
		return nil, err
	}
	if config.Valid {
		sess.Config = &config.String
	}
	return &sess, nil
}
