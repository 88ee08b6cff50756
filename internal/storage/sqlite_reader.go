package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roman-kulish/groundlink/internal/flight"
)

// ErrNoData indicates that no telemetry exists for the given parameters.
var ErrNoData = errors.New("no data available")

// ReaderOption configures a SqliteTrackReader with specific filtering criteria.
type ReaderOption func(*SqliteTrackReader)

// WithStartTime sets the start time filter for the track reader.
// Track points with timestamps before this time will be excluded.
func WithStartTime(t time.Time) ReaderOption {
	return func(r *SqliteTrackReader) {
		r.startTime = &t
	}
}

// WithEndTime sets the end time filter for the track reader.
// Track points with timestamps after this time will be excluded.
func WithEndTime(t time.Time) ReaderOption {
	return func(r *SqliteTrackReader) {
		r.endTime = &t
	}
}

// WithTimeRange sets both start and end time filters.
// This is a convenience function equivalent to applying both WithStartTime
// and WithEndTime.
func WithTimeRange(startTime, endTime time.Time) ReaderOption {
	return func(r *SqliteTrackReader) {
		r.startTime = &startTime
		r.endTime = &endTime
	}
}

// WithFixOnly skips samples recorded before the vehicle had a position.
func WithFixOnly() ReaderOption {
	return func(r *SqliteTrackReader) {
		r.fixOnly = true
	}
}

// SqliteTrackReader implements TrackReader for SQLite database backend.
type SqliteTrackReader struct {
	db *sql.DB

	sessionID int64
	session   *flight.Session

	startTime *time.Time // Optional start of time range filter
	endTime   *time.Time // Optional end of time range filter
	fixOnly   bool

	current *flight.TrackPoint
	rows    *sql.Rows
	err     error
}

func newSqliteTrackReader(ctx context.Context, db *sql.DB, sessionID int64, opts ...ReaderOption) (*SqliteTrackReader, error) {
	tr := &SqliteTrackReader{
		db:        db,
		sessionID: sessionID,
	}
	for _, opt := range opts {
		opt(tr)
	}
	if err := tr.init(ctx); err != nil {
		return nil, fmt.Errorf("initializing reader: %w", err)
	}
	return tr, nil
}

func (tr *SqliteTrackReader) init(ctx context.Context) error {
	if tr.db == nil {
		return errors.New("database connection required")
	}
	if tr.sessionID <= 0 {
		return errors.New("session ID required")
	}

	steps := []struct {
		msg string
		fn  func(context.Context) error
	}{
		{msg: "loading session", fn: tr.loadSession},
		{msg: "initializing filters", fn: tr.initFilters},
		{msg: "initializing query", fn: tr.initQuery},
	}
	for _, s := range steps {
		if err := s.fn(ctx); err != nil {
			return fmt.Errorf("%s: %w", s.msg, err)
		}
	}
	return nil
}

func (tr *SqliteTrackReader) loadSession(ctx context.Context) (err error) {
	stmt, err := tr.db.PrepareContext(ctx, selectSessionSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	if tr.session, err = scanSession(stmt.QueryRowContext(ctx, tr.sessionID)); err != nil {
		return fmt.Errorf("querying session: %w", err)
	}
	return
}

func (tr *SqliteTrackReader) initFilters(ctx context.Context) (err error) {
	if tr.startTime != nil && tr.endTime != nil {
		if tr.startTime.After(*tr.endTime) {
			return fmt.Errorf("start time %s is after end time %s", tr.startTime, tr.endTime)
		}
		return nil
	}

	stmt, err := tr.db.PrepareContext(ctx, selectTrackBoundsSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	var first, last sql.NullInt64
	if err = stmt.QueryRowContext(ctx, tr.sessionID).Scan(&first, &last); err != nil {
		return fmt.Errorf("scanning filters data: %w", err)
	}
	if !first.Valid || !last.Valid {
		return ErrNoData
	}

	if tr.startTime == nil {
		t := time.UnixMilli(first.Int64).UTC()
		tr.startTime = &t
	}
	if tr.endTime == nil {
		t := time.UnixMilli(last.Int64).UTC()
		tr.endTime = &t
	}
	if tr.startTime.After(*tr.endTime) {
		return fmt.Errorf("start time %s is after end time %s", tr.startTime, tr.endTime)
	}
	return nil
}

func (tr *SqliteTrackReader) initQuery(ctx context.Context) (err error) {
	query := selectTrackSQL
	if tr.fixOnly {
		query = selectTrackWithFixSQL
	}

	tr.rows, err = tr.db.QueryContext(ctx, query, tr.sessionID, tr.startTime.UnixMilli(), tr.endTime.UnixMilli())
	return
}

func (tr *SqliteTrackReader) Session() *flight.Session {
	return tr.session
}

func (tr *SqliteTrackReader) Next(ctx context.Context) bool {
	if tr.err != nil || tr.rows == nil {
		return false
	}

	select {
	case <-ctx.Done():
		tr.err = ctx.Err()
		return false
	default:
	}

	if !tr.rows.Next() {
		return false
	}

	var ts int64
	var p flight.TrackPoint
	if tr.err = tr.rows.Scan(&ts, &p.Latitude, &p.Longitude, &p.RelativeAltitude, &p.Voltage, &p.Current); tr.err != nil {
		tr.err = fmt.Errorf("scanning track point: %w", tr.err)
		return false
	}
	p.Timestamp = time.UnixMilli(ts).UTC()

	tr.current = &p
	return true
}

func (tr *SqliteTrackReader) Current() *flight.TrackPoint {
	return tr.current
}

func (tr *SqliteTrackReader) Error() error {
	if tr.err != nil {
		return tr.err
	}
	if tr.rows != nil {
		return tr.rows.Err()
	}
	return nil
}

func (tr *SqliteTrackReader) Close() error {
	if tr.rows != nil {
		err := tr.rows.Close()
		tr.current = nil
		tr.rows = nil
		return err
	}
	return nil
}

var _ TrackReader = (*SqliteTrackReader)(nil)
