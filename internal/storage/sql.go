package storage

import (
	_ "embed"
)

const (
	insertSessionSQL = `
INSERT INTO sessions (
                      start_time,
                      transport,
                      endpoint,
                      config)
VALUES (?, ?, ?, ?)`

	selectSessionSQL = `
SELECT
    id,
    start_time,
    transport,
    endpoint,
    config
FROM sessions
WHERE
    id = ?`

	selectSessionsSQL = `
SELECT
    id,
    start_time,
    transport,
    endpoint,
    config
FROM sessions
ORDER BY start_time, id`

	insertEventSQL = `
INSERT INTO events (session_id,
                    timestamp,
                    kind,
                    value,
                    detail)
VALUES `

	insertTelemetrySQL = `
INSERT INTO telemetry (session_id,
                       timestamp,
                       latitude,
                       longitude,
                       relative_altitude,
                       voltage,
                       current)
VALUES `

	selectEventsSQL = `
SELECT
    timestamp,
    kind,
    value,
    detail
FROM events
WHERE
    session_id = ?
ORDER BY timestamp, id`

	selectTrackBoundsSQL = `
SELECT
    MIN(timestamp),
    MAX(timestamp)
FROM telemetry
WHERE
    session_id = ?`

	selectTrackSQL = `
SELECT
    timestamp,
    latitude,
    longitude,
    relative_altitude,
    voltage,
    current
FROM telemetry
WHERE
    session_id = ?
    AND timestamp BETWEEN ? AND ?
ORDER BY timestamp, id`

	selectTrackWithFixSQL = `
SELECT
    timestamp,
    latitude,
    longitude,
    relative_altitude,
    voltage,
    current
FROM telemetry
WHERE
    session_id = ?
    AND timestamp BETWEEN ? AND ?
    AND (latitude != 0 OR longitude != 0)
ORDER BY timestamp, id`

	initIndexesSQL = `
CREATE INDEX IF NOT EXISTS idx_events_session_time ON events (session_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_telemetry_session_time ON telemetry (session_id, timestamp);`
)

//go:embed schema.sql
var initSchemaSQL string
