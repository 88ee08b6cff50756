package storage

import (
	"context"

	_ "github.com/mattn/go-sqlite3"
	"github.com/roman-kulish/groundlink/internal/flight"
	"github.com/roman-kulish/groundlink/internal/telemetry"
)

// Store provides an interface for the flight recorder storage operations.
// It handles sessions, change events and telemetry samples in a thread-safe
// manner. All operations that write to the database should be considered atomic.
type Store interface {
	// CreateSession initializes a new recording session and returns its unique identifier.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - transport: Transport kind (e.g., "serial", "udp", "tcp")
	//   - endpoint: Transport endpoint (e.g., serial device or listen address)
	//   - config: Optional link configuration. Can be string, []byte, or JSON-serializable object
	//
	// Returns:
	//   - sessionID: Unique identifier for the created session
	//   - error: If session creation fails or context is cancelled
	CreateSession(ctx context.Context, transport, endpoint string, config any) (sessionID int64, err error)

	// Session retrieves a specific recording session by its ID.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - id: Unique session identifier
	//
	// Returns:
	//   - session: Pointer to session data
	//   - error: If retrieval fails, the session doesn't exist or context is cancelled
	Session(ctx context.Context, id int64) (session *flight.Session, err error)

	// Sessions returns all recording sessions stored in the database.
	// Results are ordered by start time in ascending order.
	Sessions(ctx context.Context) (sessions []*flight.Session, err error)

	// StoreEvents saves a batch of change events for a specific session.
	// The whole batch is stored in a single transaction.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - sessionID: ID of the session the events belong to
	//   - events: Events in the order they were observed
	//
	// Returns:
	//   - error: If storage fails or context is cancelled
	StoreEvents(ctx context.Context, sessionID int64, events []flight.Event) error

	// StoreTelemetry saves a batch of telemetry samples for a specific session.
	// The whole batch is stored in a single transaction.
	StoreTelemetry(ctx context.Context, sessionID int64, samples []telemetry.Telemetry) error

	// Events returns every event recorded for the session, oldest first.
	Events(ctx context.Context, sessionID int64) ([]flight.Event, error)

	// Close releases all database connections and resources.
	// After Close is called, the store instance cannot be reused.
	// It is safe to call Close multiple times.
	Close() error
}

// TrackReader provides an iterator-based interface for reading the recorded
// flight track of a session with optional time filtering.
type TrackReader interface {
	// Session returns metadata about the session this reader is accessing.
	Session() *flight.Session

	// Next advances the iterator and returns true if there is another track
	// point to read, false when the iteration is complete or if an error occurred.
	Next(context.Context) bool

	// Current returns the current track point in the iteration.
	// If called after Next() returns false, the behavior is undefined.
	Current() *flight.TrackPoint

	// Error returns any error that occurred during iteration.
	// If Next() returns false, Error() should be checked to distinguish between
	// end of data and an error condition.
	Error() error

	// Close releases any resources associated with the reader.
	// After Close is called, the reader should not be used.
	Close() error
}
