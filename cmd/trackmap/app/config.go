package app

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"
)

const (
	ImagePNG  = "png"
	ImageJPEG = "jpeg"

	defaultWidth = 1024
	minWidth     = 256
)

type ImageFormat string

type Config struct {
	DBPath        string
	SessionID     int64
	OutputFile    string
	Format        ImageFormat
	Width         int
	MinTimestamp  *time.Time
	MaxTimestamp  *time.Time
	TimeZone      *time.Location
	IncludeNoFix  bool
	NoAnnotations bool
}

var validImageFormats = map[ImageFormat]struct{}{
	ImagePNG:  {},
	ImageJPEG: {},
}

func NewConfig() *Config {
	return &Config{
		Format:   ImagePNG,
		Width:    defaultWidth,
		TimeZone: time.Local,
	}
}

// NewConfigFromArgs parses command line arguments, without the program name.
func NewConfigFromArgs(name string, args []string, output io.Writer) (*Config, error) {
	c := NewConfig()

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(output)

	var imageFormat, from, to, tz string
	fs.StringVar(&c.DBPath, "db", "", "Path to the database file")
	fs.Int64Var(&c.SessionID, "s", 1, "Session ID")
	fs.StringVar(&c.OutputFile, "o", "", "Path to the output file, without extension")
	fs.StringVar(&imageFormat, "f", string(ImagePNG), "Output image format. [png, jpeg]")
	fs.IntVar(&c.Width, "w", defaultWidth, "Width of the map area in pixels")
	fs.StringVar(&from, "from", "", "Render samples recorded at or after this time (RFC 3339 or \"2006-01-02 15:04:05\")")
	fs.StringVar(&to, "to", "", "Render samples recorded at or before this time (RFC 3339 or \"2006-01-02 15:04:05\")")
	fs.StringVar(&tz, "tz", "Local", "Time zone for annotations, e.g. UTC or Europe/Zurich")
	fs.BoolVar(&c.IncludeNoFix, "include-no-fix", false, "Keep samples recorded before the vehicle had a position")
	fs.BoolVar(&c.NoAnnotations, "no-annotations", false, "Disable annotations such as coordinate scales and the info bar")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	imageFormat = strings.ToLower(imageFormat)
	if imageFormat == "jpg" {
		imageFormat = ImageJPEG
	}

	var err error
	switch {
	case c.DBPath == "":
		err = errors.New("db path is required")
	case c.SessionID <= 0:
		err = errors.New("session id is required")
	case c.OutputFile == "":
		err = errors.New("output file is required")
	case c.Width < minWidth:
		err = fmt.Errorf("width must be at least %d pixels: %d given", minWidth, c.Width)
	}
	if err == nil {
		if _, ok := validImageFormats[ImageFormat(imageFormat)]; !ok {
			err = fmt.Errorf("invalid image format: %s", imageFormat)
		}
	}
	if err == nil {
		c.TimeZone, err = time.LoadLocation(tz)
	}
	if err == nil && from != "" {
		c.MinTimestamp, err = parseTimestamp(from, c.TimeZone)
	}
	if err == nil && to != "" {
		c.MaxTimestamp, err = parseTimestamp(to, c.TimeZone)
	}
	if err == nil && c.MinTimestamp != nil && c.MaxTimestamp != nil && c.MinTimestamp.After(*c.MaxTimestamp) {
		err = errors.New("-from must not be after -to")
	}

	if err != nil {
		fs.Usage()
		return nil, err
	}

	c.Format = ImageFormat(imageFormat)
	c.OutputFile = fmt.Sprintf("%s.%s", c.OutputFile, c.Format)
	return c, nil
}

func parseTimestamp(s string, loc *time.Location) (*time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	t, err := time.ParseInLocation(time.DateTime, s, loc)
	if err != nil {
		return nil, fmt.Errorf("invalid timestamp %q", s)
	}
	return &t, nil
}
