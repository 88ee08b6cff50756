package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/roman-kulish/groundlink/internal/config"
	"github.com/roman-kulish/groundlink/internal/link/mavlink"
	"github.com/roman-kulish/groundlink/internal/link/transport"
)

// EnvPrefix prefixes every environment variable that overrides the
// configuration file.
const EnvPrefix = "GROUNDLINK_"

const (
	defaultDataDirectory = "data"
	defaultListen        = ":8080"
	defaultRetryInterval = 5 * time.Second
)

// Config represents the main application configuration
type Config struct {
	Settings Settings       `yaml:"settings"`
	Link     LinkConfig     `yaml:"link"`
	Recorder RecorderConfig `yaml:"recorder"`
	Gateway  GatewayConfig  `yaml:"gateway"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel string `yaml:"logLevel" env:"LOG_LEVEL"`
}

// Level parses LogLevel ("debug", "info", "warn", "error").
func (s *Settings) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return 0, err
	}
	return level, nil
}

// LinkConfig represents the vehicle link settings
type LinkConfig struct {
	transport.Config `yaml:",inline"`

	SystemID             uint8           `yaml:"systemID"`
	ComponentID          uint8           `yaml:"componentID"`
	TargetSystem         uint8           `yaml:"targetSystem"` // 0 accepts any vehicle
	TargetComponent      uint8           `yaml:"targetComponent"`
	HeartbeatInterval    config.Duration `yaml:"heartbeatInterval"`
	ParseErrorsThreshold uint8           `yaml:"parseErrorsThreshold"`
	RetryInterval        config.Duration `yaml:"retryInterval"` // delay between attempts to open the transport
}

// RecorderConfig represents flight recorder settings
type RecorderConfig struct {
	Enabled       bool            `yaml:"enabled"`
	DataDirectory string          `yaml:"dataDirectory" env:"DATA_DIR"`
	MaxBatchSize  int             `yaml:"maxBatchSize"`
	FlushInterval config.Duration `yaml:"flushInterval"`
}

// GatewayConfig represents the HTTP and WebSocket gateway settings
type GatewayConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen" env:"LISTEN"`
}

// NewConfig returns the configuration used for anything the file and the
// environment leave out.
func NewConfig() *Config {
	return &Config{
		Settings: Settings{LogLevel: "info"},
		Link: LinkConfig{
			Config: transport.Config{
				Kind:        transport.KindSerial,
				BaudRate:    transport.DefaultBaudRate,
				ReadTimeout: config.NewDuration(transport.DefaultReadTimeout * time.Millisecond),
			},
			SystemID:             mavlink.DefaultSystemID,
			ComponentID:          mavlink.DefaultComponentID,
			TargetSystem:         mavlink.DefaultTargetSystem,
			TargetComponent:      mavlink.DefaultTargetComponent,
			HeartbeatInterval:    config.NewDuration(mavlink.DefaultHeartbeatInterval),
			ParseErrorsThreshold: mavlink.ParseErrorsThreshold,
			RetryInterval:        config.NewDuration(defaultRetryInterval),
		},
		Recorder: RecorderConfig{
			Enabled:       true,
			DataDirectory: defaultDataDirectory,
			MaxBatchSize:  maxBatchSize,
			FlushInterval: config.NewDuration(flushInterval),
		},
		Gateway: GatewayConfig{
			Enabled: true,
			Listen:  defaultListen,
		},
	}
}

// LoadConfig reads the YAML file at path, when given, over the defaults and
// then applies GROUNDLINK_* environment overrides.
func LoadConfig(path string) (*Config, error) {
	c := NewConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err = yaml.Unmarshal(data, c); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	var errs []error

	if _, err := c.Settings.Level(); err != nil {
		errs = append(errs, fmt.Errorf("settings: invalid log level %q", c.Settings.LogLevel))
	}

	if err := c.Link.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("link: %w", err))
	}
	if err := c.Link.HeartbeatInterval.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("link: heartbeat interval: %w", err))
	}
	if err := c.Link.RetryInterval.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("link: retry interval: %w", err))
	}
	if c.Link.ParseErrorsThreshold == 0 {
		errs = append(errs, errors.New("link: parse errors threshold must be positive"))
	}
	if c.Link.SystemID == 0 {
		errs = append(errs, errors.New("link: system ID must be positive"))
	}

	if c.Recorder.Enabled {
		if c.Recorder.DataDirectory == "" {
			errs = append(errs, errors.New("recorder: data directory is required"))
		}
		if c.Recorder.MaxBatchSize <= 0 {
			errs = append(errs, fmt.Errorf("recorder: max batch size must be positive: %d given", c.Recorder.MaxBatchSize))
		}
		if err := c.Recorder.FlushInterval.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("recorder: flush interval: %w", err))
		}
	}

	if c.Gateway.Enabled && c.Gateway.Listen == "" {
		errs = append(errs, errors.New("gateway: listen address is required"))
	}

	return errors.Join(errs...)
}
