package app

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"log/slog"
	"os"
	"time"

	"github.com/roman-kulish/groundlink/internal/storage"
)

func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	if _, err := os.Stat(config.DBPath); err != nil && os.IsNotExist(err) {
		return fmt.Errorf("database file '%s' does not exist: %w", config.DBPath, err)
	}

	store := storage.NewSqliteStore(config.DBPath)
	defer store.Close()

	track, err := readTrack(ctx, store, config, logger)
	if err != nil {
		return err
	}

	renderer := NewTrackRenderer(RenderConfig{
		Width:         config.Width,
		Location:      config.TimeZone,
		NoAnnotations: config.NoAnnotations,
	})

	img, err := renderer.Render(track)
	if err != nil {
		return fmt.Errorf("rendering track: %w", err)
	}

	logger.Info("writing image",
		slog.Group("image",
			slog.String("destination", config.OutputFile),
			slog.String("format", string(config.Format)),
			slog.Int("width", img.Bounds().Dx()),
			slog.Int("height", img.Bounds().Dy()),
		))

	return writeImage(config.OutputFile, config.Format, img)
}

func readTrack(ctx context.Context, store *storage.SqliteStore, config *Config, logger *slog.Logger) (*TrackData, error) {
	var opts []storage.ReaderOption
	var filters []any
	switch {
	case config.MinTimestamp != nil && config.MaxTimestamp != nil:
		opts = append(opts, storage.WithTimeRange(config.MinTimestamp.UTC(), config.MaxTimestamp.UTC()))

		filters = append(filters,
			slog.String("minTimestamp", config.MinTimestamp.UTC().Format(time.DateTime)),
			slog.String("maxTimestamp", config.MaxTimestamp.UTC().Format(time.DateTime)))

	case config.MinTimestamp != nil:
		opts = append(opts, storage.WithStartTime(config.MinTimestamp.UTC()))
		filters = append(filters, slog.String("minTimestamp", config.MinTimestamp.UTC().Format(time.DateTime)))

	case config.MaxTimestamp != nil:
		opts = append(opts, storage.WithEndTime(config.MaxTimestamp.UTC()))
		filters = append(filters, slog.String("maxTimestamp", config.MaxTimestamp.UTC().Format(time.DateTime)))
	}
	if !config.IncludeNoFix {
		opts = append(opts, storage.WithFixOnly())
	}
	filters = append(filters, slog.Bool("fixOnly", !config.IncludeNoFix))

	logger.Info("reader configuration", filters...)

	reader, err := store.ReadTrack(ctx, config.SessionID, opts...)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	session := reader.Session()
	logger.Info("reading track",
		slog.Int64("session", session.ID),
		slog.String("transport", session.Transport),
		slog.String("endpoint", session.Endpoint),
		slog.String("started", session.StartTime.In(config.TimeZone).Format(time.DateTime)))

	track := NewTrackData()
	for reader.Next(ctx) {
		track.Update(reader.Current())
	}
	if err = reader.Error(); err != nil {
		return nil, err
	}
	if track.Empty() {
		return nil, fmt.Errorf("session %d: %w", config.SessionID, storage.ErrNoData)
	}

	logger.Info("finished reading track",
		slog.Group("stats",
			slog.Int("points", len(track.Points)),
			slog.String("minTimestamp", track.TimestampStart.In(config.TimeZone).Format(time.DateTime)),
			slog.String("maxTimestamp", track.TimestampEnd.In(config.TimeZone).Format(time.DateTime)),
			slog.String("minAltitude", fmt.Sprintf("%0.1fm", track.AltitudeMin)),
			slog.String("maxAltitude", fmt.Sprintf("%0.1fm", track.AltitudeMax)),
			slog.String("distance", fmt.Sprintf("%0.0fm", track.Distance)),
		))

	return track, nil
}

func writeImage(path string, format ImageFormat, img image.Image) (err error) {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	switch format {
	case ImagePNG:
		err = png.Encode(out, img)

	case ImageJPEG:
		err = jpeg.Encode(out, img, &jpeg.Options{
			Quality: 98,
		})

	default:
		err = fmt.Errorf("invalid image format: %s", format)
	}
	return err
}
