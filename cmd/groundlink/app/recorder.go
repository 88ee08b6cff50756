package app

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"github.com/roman-kulish/groundlink/internal/flight"
	"github.com/roman-kulish/groundlink/internal/storage"
	"github.com/roman-kulish/groundlink/internal/telemetry"
	"github.com/roman-kulish/groundlink/internal/vehicle"
)

const (
	maxBatchSize  = 100
	flushInterval = 2 * time.Second

	// bounds the flush made after the run context is done
	finalFlushTimeout = 5 * time.Second
)

// EventSource is the part of the event loop the recorder consumes.
type EventSource interface {
	telemetry.Provider
	Subscribe(ctx context.Context) (<-chan vehicle.Event, func())
}

// WithMaxBatchSize sets the number of buffered events or samples that forces
// a flush, and the maximum number of rows stored within a single database
// transaction.
func WithMaxBatchSize(size int) func(*Recorder) {
	return func(r *Recorder) {
		if size > 0 {
			r.maxBatchSize = size
		}
	}
}

// WithFlushInterval sets how often buffered data is written even when the
// batch is not full.
func WithFlushInterval(d time.Duration) func(*Recorder) {
	return func(r *Recorder) {
		if d > 0 {
			r.flushInterval = d
		}
	}
}

// WithRecorderLogger sets the logger for the recorder
func WithRecorderLogger(logger *slog.Logger) func(*Recorder) {
	return func(r *Recorder) {
		r.logger = logger.With(slog.String("component", "recorder"))
	}
}

// Recorder stores every change event published by the event loop, plus a
// position and battery sample whenever those change, under one session.
type Recorder struct {
	store  storage.Store
	source EventSource

	maxBatchSize  int
	flushInterval time.Duration
	logger        *slog.Logger
	now           func() time.Time

	mirror  telemetry.Telemetry
	pending bool // mirror changed since the last sample
	events  []flight.Event
	samples []telemetry.Telemetry
}

// NewRecorder creates a new Recorder
func NewRecorder(store storage.Store, source EventSource, options ...func(*Recorder)) *Recorder {
	r := Recorder{
		store:         store,
		source:        source,
		maxBatchSize:  maxBatchSize,
		flushInterval: flushInterval,
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)), // nil logger
		now:           time.Now,
	}

	for _, option := range options {
		option(&r)
	}

	return &r
}

// Run records into sessionID until ctx is cancelled or the subscription is
// closed. Buffered data is flushed before Run returns. Storage failures are
// logged and the affected batch is dropped.
func (r *Recorder) Run(ctx context.Context, sessionID int64) error {
	events, unsubscribe := r.source.Subscribe(ctx)
	defer unsubscribe()

	if t, err := r.source.Telemetry(ctx); err != nil {
		r.logger.Warn("starting without telemetry snapshot", slog.String("error", err.Error()))
	} else {
		r.mirror = t
	}

	ticker := time.NewTicker(r.flushInterval)
	defer ticker.Stop()

	r.logger.Info("recording", slog.Int64("session", sessionID))

	for {
		select {
		case <-ctx.Done():
			r.finalFlush(sessionID)
			return nil

		case ev, ok := <-events:
			if !ok {
				r.finalFlush(sessionID)
				return nil
			}
			r.record(ev)

			// a position update arrives as a burst of events, sample once
			// the burst has been drained
			if len(events) == 0 {
				r.sample()
			}
			if len(r.events) >= r.maxBatchSize || len(r.samples) >= r.maxBatchSize {
				r.flush(ctx, sessionID)
			}

		case <-ticker.C:
			r.sample()
			r.flush(ctx, sessionID)
		}
	}
}

func (r *Recorder) record(ev vehicle.Event) {
	r.events = append(r.events, flight.Event{
		Timestamp: r.now().UTC(),
		Kind:      ev.Kind.String(),
		Value:     formatValue(ev),
		Detail:    ev.Detail,
	})

	ev.Apply(&r.mirror)
	switch ev.Kind {
	case vehicle.LatitudeChanged, vehicle.LongitudeChanged, vehicle.HeightChanged,
		vehicle.VoltageChanged, vehicle.CurrentChanged:
		r.pending = true
	}
}

func (r *Recorder) sample() {
	if !r.pending {
		return
	}
	s := r.mirror
	s.Timestamp = r.now().UTC()
	r.samples = append(r.samples, s)
	r.pending = false
}

func (r *Recorder) finalFlush(sessionID int64) {
	r.sample()

	ctx, cancel := context.WithTimeout(context.Background(), finalFlushTimeout)
	defer cancel()
	r.flush(ctx, sessionID)
}

func (r *Recorder) flush(ctx context.Context, sessionID int64) {
	for chunk := range slices.Chunk(r.events, r.maxBatchSize) {
		if err := r.store.StoreEvents(ctx, sessionID, chunk); err != nil {
			r.logger.Error("storing events", slog.Int("count", len(chunk)), slog.String("error", err.Error()))
		}
	}
	for chunk := range slices.Chunk(r.samples, r.maxBatchSize) {
		if err := r.store.StoreTelemetry(ctx, sessionID, chunk); err != nil {
			r.logger.Error("storing telemetry", slog.Int("count", len(chunk)), slog.String("error", err.Error()))
		}
	}

	r.events = nil
	r.samples = nil
}

func formatValue(ev vehicle.Event) string {
	switch v := ev.Value().(type) {
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case string:
		return v
	default:
		return ev.String()
	}
}
