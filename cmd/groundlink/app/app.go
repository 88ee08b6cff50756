package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roman-kulish/groundlink/internal/gateway"
	"github.com/roman-kulish/groundlink/internal/link"
	"github.com/roman-kulish/groundlink/internal/link/mavlink"
	"github.com/roman-kulish/groundlink/internal/link/transport"
	"github.com/roman-kulish/groundlink/internal/storage"
	"github.com/roman-kulish/groundlink/internal/vehicle"
)

// Run wires the link, the bridge event loop, the flight recorder and the
// gateway, and blocks until ctx is cancelled or one of them fails.
func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	lnk := mavlink.New(
		mavlink.WithLogger(logger),
		mavlink.WithSystemID(config.Link.SystemID, config.Link.ComponentID),
		mavlink.WithTarget(config.Link.TargetSystem, config.Link.TargetComponent),
		mavlink.WithHeartbeatInterval(config.Link.HeartbeatInterval.Duration()),
		mavlink.WithParseErrorsThreshold(config.Link.ParseErrorsThreshold),
	)
	bridge := vehicle.NewBridge(lnk, vehicle.WithLogger(logger))
	loop := vehicle.NewLoop(bridge, lnk.Events(), vehicle.WithLoopLogger(logger))

	var recorder *Recorder
	var sessionID int64
	if config.Recorder.Enabled {
		store, err := createStorage(&config.Recorder)
		if err != nil {
			return fmt.Errorf("failed to create storage: %w", err)
		}
		defer store.Close()

		if sessionID, err = store.CreateSession(ctx, config.Link.Kind.String(), config.Link.Describe(), config.Link); err != nil {
			return fmt.Errorf("failed to create session: %w", err)
		}

		recorder = NewRecorder(store, loop,
			WithMaxBatchSize(config.Recorder.MaxBatchSize),
			WithFlushInterval(config.Recorder.FlushInterval.Duration()),
			WithRecorderLogger(logger))
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := loop.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("event loop: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		serveLink(gctx, lnk, &config.Link, logger)
		return nil
	})

	if recorder != nil {
		g.Go(func() error {
			return recorder.Run(gctx, sessionID)
		})
	}

	if config.Gateway.Enabled {
		srv := gateway.NewServer(loop, gateway.WithLogger(logger))
		g.Go(func() error {
			if err := srv.ListenAndServe(gctx, config.Gateway.Listen); err != nil {
				return fmt.Errorf("gateway: %w", err)
			}
			return nil
		})
	}

	return g.Wait()
}

// serveLink keeps the transport attached to the link until ctx is done. A
// transport that cannot be opened or fails is reported as unavailable and
// retried after the configured interval, commands meanwhile fail with
// link.ErrNotConnected.
func serveLink(ctx context.Context, lnk *mavlink.Link, config *LinkConfig, logger *slog.Logger) {
	logger = logger.With(slog.String("transport", config.Describe()))
	retry := config.RetryInterval.Duration()

	var lastErr string
	for {
		rwc, err := transport.Open(ctx, &config.Config)
		if err != nil {
			if err.Error() != lastErr {
				logger.Error("failed to open transport", slog.String("error", err.Error()))
				lnk.Report(ctx, link.StatusUnavailable, err)
			}
			lastErr = err.Error()
		} else {
			lastErr = ""
			_ = lnk.Run(ctx, rwc) // logged and reported by the link
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(retry):
		}
	}
}

func createStorage(config *RecorderConfig) (*storage.SqliteStore, error) {
	if err := os.MkdirAll(config.DataDirectory, 0o755); err != nil {
		return nil, fmt.Errorf("storage directory '%s': %w", config.DataDirectory, err)
	}

	dbPath := filepath.Join(config.DataDirectory, fmt.Sprintf("groundlink_%s.sqlite", time.Now().UTC().Format("20060102_150405")))
	return storage.NewSqliteStore(dbPath), nil
}
