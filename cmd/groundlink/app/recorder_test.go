package app

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/roman-kulish/groundlink/internal/flight"
	"github.com/roman-kulish/groundlink/internal/telemetry"
	"github.com/roman-kulish/groundlink/internal/vehicle"
)

type fakeSource struct {
	events    chan vehicle.Event
	snapshot  telemetry.Telemetry
	snapErr   error
	unsubbed  bool
	unsubOnce sync.Once
}

func newFakeSource(buffered ...vehicle.Event) *fakeSource {
	s := fakeSource{events: make(chan vehicle.Event, 64)}
	for _, ev := range buffered {
		s.events <- ev
	}
	return &s
}

func (s *fakeSource) Telemetry(context.Context) (telemetry.Telemetry, error) {
	return s.snapshot, s.snapErr
}

func (s *fakeSource) Subscribe(context.Context) (<-chan vehicle.Event, func()) {
	return s.events, func() { s.unsubOnce.Do(func() { s.unsubbed = true }) }
}

type fakeStore struct {
	mu           sync.Mutex
	eventBatches [][]flight.Event
	sampleBatch  [][]telemetry.Telemetry
	failWith     error
}

func (s *fakeStore) CreateSession(context.Context, string, string, any) (int64, error) {
	return 1, nil
}

func (s *fakeStore) Session(context.Context, int64) (*flight.Session, error) {
	return &flight.Session{ID: 1}, nil
}

func (s *fakeStore) Sessions(context.Context) ([]*flight.Session, error) {
	return []*flight.Session{{ID: 1}}, nil
}

func (s *fakeStore) StoreEvents(_ context.Context, _ int64, events []flight.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	s.eventBatches = append(s.eventBatches, slices.Clone(events))
	return nil
}

func (s *fakeStore) StoreTelemetry(_ context.Context, _ int64, samples []telemetry.Telemetry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	s.sampleBatch = append(s.sampleBatch, slices.Clone(samples))
	return nil
}

func (s *fakeStore) Events(context.Context, int64) ([]flight.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []flight.Event
	for _, b := range s.eventBatches {
		all = append(all, b...)
	}
	return all, nil
}

func (s *fakeStore) Close() error { return nil }

func (s *fakeStore) samples() []telemetry.Telemetry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []telemetry.Telemetry
	for _, b := range s.sampleBatch {
		all = append(all, b...)
	}
	return all
}

func (s *fakeStore) batchSizes() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sizes []int
	for _, b := range s.eventBatches {
		sizes = append(sizes, len(b))
	}
	return sizes
}

func runRecorder(t *testing.T, r *Recorder) {
	t.Helper()

	done := make(chan error, 1)
	go func() { done <- r.Run(context.Background(), 1) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Failed to run recorder: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for recorder to stop")
	}
}

func TestRecorder_RecordsEvents(t *testing.T) {
	src := newFakeSource(
		vehicle.Event{Kind: vehicle.LinkStatusChanged, Text: "up"},
		vehicle.Event{Kind: vehicle.LogChanged, Text: "Takeoff detected"},
		vehicle.Event{Kind: vehicle.XChanged, Int: 250},
		vehicle.Event{Kind: vehicle.HeightChanged, Float: 12.5},
		vehicle.Event{Kind: vehicle.CommandFailed, Text: "arm", Detail: "link not connected"},
	)
	close(src.events)

	store := &fakeStore{}
	r := NewRecorder(store, src, WithFlushInterval(time.Hour))
	runRecorder(t, r)

	got, _ := store.Events(context.Background(), 1)
	want := []flight.Event{
		{Kind: "linkStatus", Value: "up"},
		{Kind: "log", Value: "Takeoff detected"},
		{Kind: "x", Value: "250"},
		{Kind: "height", Value: "12.5"},
		{Kind: "commandFailed", Value: "arm", Detail: "link not connected"},
	}
	if len(got) != len(want) {
		t.Fatalf("Expected %d events, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i].Kind != want[i].Kind || got[i].Value != want[i].Value || got[i].Detail != want[i].Detail {
			t.Errorf("Expected event %d to be %+v, got %+v", i, want[i], got[i])
		}
		if got[i].Timestamp.IsZero() {
			t.Errorf("Expected event %d to carry a timestamp", i)
		}
	}
	if !src.unsubbed {
		t.Error("Expected recorder to unsubscribe")
	}
}

func TestRecorder_CoalescesPositionBurst(t *testing.T) {
	src := newFakeSource(
		vehicle.Event{Kind: vehicle.LatitudeChanged, Float: 47.0},
		vehicle.Event{Kind: vehicle.LongitudeChanged, Float: 8.0},
		vehicle.Event{Kind: vehicle.HeightChanged, Float: 120.5},
	)
	src.snapshot = telemetry.Telemetry{Voltage: 12000, Current: 500}
	close(src.events)

	store := &fakeStore{}
	runRecorder(t, NewRecorder(store, src, WithFlushInterval(time.Hour)))

	samples := store.samples()
	if len(samples) != 1 {
		t.Fatalf("Expected 1 sample, got %d", len(samples))
	}

	s := samples[0]
	if s.Latitude != 47.0 || s.Longitude != 8.0 || s.RelativeAltitude != 120.5 {
		t.Errorf("Expected position 47/8/120.5, got %f/%f/%f", s.Latitude, s.Longitude, s.RelativeAltitude)
	}
	if s.Voltage != 12000 || s.Current != 500 {
		t.Errorf("Expected battery from the initial snapshot, got %d/%d", s.Voltage, s.Current)
	}
}

func TestRecorder_NoSampleWithoutTrackedChange(t *testing.T) {
	src := newFakeSource(
		vehicle.Event{Kind: vehicle.LogChanged, Text: "ready"},
		vehicle.Event{Kind: vehicle.YChanged, Int: -10},
	)
	close(src.events)

	store := &fakeStore{}
	runRecorder(t, NewRecorder(store, src))

	if n := len(store.samples()); n != 0 {
		t.Errorf("Expected no samples, got %d", n)
	}
}

func TestRecorder_Batching(t *testing.T) {
	src := newFakeSource()
	for i := range 5 {
		src.events <- vehicle.Event{Kind: vehicle.ZChanged, Int: i + 1}
	}
	close(src.events)

	store := &fakeStore{}
	runRecorder(t, NewRecorder(store, src, WithMaxBatchSize(2), WithFlushInterval(time.Hour)))

	want := []int{2, 2, 1}
	if got := store.batchSizes(); !slices.Equal(got, want) {
		t.Errorf("Expected batches %v, got %v", want, got)
	}
}

func TestRecorder_FlushesOnInterval(t *testing.T) {
	src := newFakeSource(vehicle.Event{Kind: vehicle.VoltageChanged, Int: 11800})

	store := &fakeStore{}
	r := NewRecorder(store, src, WithFlushInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx, 1) }()

	deadline := time.Now().Add(2 * time.Second)
	for len(store.samples()) == 0 {
		if time.Now().After(deadline) {
			cancel()
			t.Fatal("Timed out waiting for flush")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Expected nil error, got %v", err)
	}
	if got := store.samples()[0].Voltage; got != 11800 {
		t.Errorf("Expected voltage 11800, got %d", got)
	}
}

func TestRecorder_StorageFailureIsNotFatal(t *testing.T) {
	src := newFakeSource(vehicle.Event{Kind: vehicle.LogChanged, Text: "x"})
	src.snapErr = errors.New("loop stopped")
	close(src.events)

	store := &fakeStore{failWith: errors.New("disk full")}
	runRecorder(t, NewRecorder(store, src))

	if n := len(store.batchSizes()); n != 0 {
		t.Errorf("Expected nothing stored, got %d batches", n)
	}
}
