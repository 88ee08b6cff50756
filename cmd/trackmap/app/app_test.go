package app

import (
	"context"
	"errors"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/roman-kulish/groundlink/internal/storage"
	"github.com/roman-kulish/groundlink/internal/telemetry"
)

func recordFlight(t *testing.T, samples []telemetry.Telemetry) (string, int64) {
	t.Helper()

	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "groundlink_test.sqlite")

	store := storage.NewSqliteStore(dbPath)
	sessionID, err := store.CreateSession(ctx, "udp", ":14550", nil)
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	if err = store.StoreTelemetry(ctx, sessionID, samples); err != nil {
		t.Fatalf("Failed to store telemetry: %v", err)
	}
	if err = store.Close(); err != nil {
		t.Fatalf("Failed to close store: %v", err)
	}
	return dbPath, sessionID
}

func TestRun(t *testing.T) {
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	dbPath, sessionID := recordFlight(t, []telemetry.Telemetry{
		{Timestamp: start, RelativeAltitude: 0}, // no fix yet
		{Timestamp: start.Add(time.Second), Latitude: 47.0, Longitude: 8.0, RelativeAltitude: 2},
		{Timestamp: start.Add(20 * time.Second), Latitude: 47.001, Longitude: 8.001, RelativeAltitude: 30},
		{Timestamp: start.Add(40 * time.Second), Latitude: 47.002, Longitude: 8.001, RelativeAltitude: 45},
	})

	config := NewConfig()
	config.DBPath = dbPath
	config.SessionID = sessionID
	config.OutputFile = filepath.Join(t.TempDir(), "track.png")
	config.TimeZone = time.UTC

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := Run(context.Background(), config, logger); err != nil {
		t.Fatalf("Failed to render track: %v", err)
	}

	f, err := os.Open(config.OutputFile)
	if err != nil {
		t.Fatalf("Failed to open image: %v", err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("Failed to decode image: %v", err)
	}
	if want := config.Width + defaultLeftBorder + defaultRightBorder; img.Bounds().Dx() != want {
		t.Errorf("Expected image width %d, got %d", want, img.Bounds().Dx())
	}
}

func TestReadTrack_FixOnly(t *testing.T) {
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	dbPath, sessionID := recordFlight(t, []telemetry.Telemetry{
		{Timestamp: start},
		{Timestamp: start.Add(time.Second), Latitude: 47.0, Longitude: 8.0},
		{Timestamp: start.Add(2 * time.Second), Latitude: 47.0001, Longitude: 8.0},
	})

	tests := []struct {
		name         string
		includeNoFix bool
		from         *time.Time
		want         int
	}{
		{"fix only", false, nil, 2},
		{"everything", true, nil, 3},
		{"from", true, ptr(start.Add(2 * time.Second)), 1},
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := storage.NewSqliteStore(dbPath)
			defer store.Close()

			config := NewConfig()
			config.SessionID = sessionID
			config.IncludeNoFix = tt.includeNoFix
			config.MinTimestamp = tt.from

			track, err := readTrack(context.Background(), store, config, logger)
			if err != nil {
				t.Fatalf("Failed to read track: %v", err)
			}
			if len(track.Points) != tt.want {
				t.Errorf("Expected %d points, got %d", tt.want, len(track.Points))
			}
		})
	}
}

func TestReadTrack_NoFix(t *testing.T) {
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	dbPath, sessionID := recordFlight(t, []telemetry.Telemetry{
		{Timestamp: start, Voltage: 12000},
		{Timestamp: start.Add(time.Second), Voltage: 11900},
	})

	store := storage.NewSqliteStore(dbPath)
	defer store.Close()

	config := NewConfig()
	config.SessionID = sessionID

	_, err := readTrack(context.Background(), store, config, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if !errors.Is(err, storage.ErrNoData) {
		t.Errorf("Expected ErrNoData, got %v", err)
	}
}

func TestRun_MissingDatabase(t *testing.T) {
	config := NewConfig()
	config.DBPath = filepath.Join(t.TempDir(), "missing.sqlite")
	config.SessionID = 1
	config.OutputFile = filepath.Join(t.TempDir(), "track.png")

	if err := Run(context.Background(), config, slog.New(slog.NewTextHandler(io.Discard, nil))); err == nil {
		t.Error("Expected error, got nil")
	}
}

func ptr[T any](v T) *T {
	return &v
}
