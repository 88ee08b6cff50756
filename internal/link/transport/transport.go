package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/roman-kulish/groundlink/internal/config"
)

const (
	KindSerial Kind = "serial"
	KindUDP    Kind = "udp"
	KindTCP    Kind = "tcp"

	DefaultBaudRate    = 57600
	DefaultReadTimeout = 100 // milliseconds
)

// ErrUnknownTransport is returned by Open for an unregistered Kind
var ErrUnknownTransport = errors.New("unknown transport")

// Kind names a transport implementation.
type Kind string

func (k Kind) String() string {
	return string(k)
}

// Opener opens a transport described by cfg.
type Opener func(ctx context.Context, cfg *Config) (io.ReadWriteCloser, error)

var openers = map[Kind]Opener{
	KindSerial: openSerial,
	KindUDP:    openUDP,
	KindTCP:    openTCP,
}

// Kinds lists the registered transports in sorted order.
func Kinds() []Kind {
	kinds := make([]Kind, 0, len(openers))
	for k := range openers {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}

// Config describes the byte stream to the vehicle.
type Config struct {
	Kind        Kind            `yaml:"transport" json:"transport" env:"TRANSPORT"`
	SerialPort  string          `yaml:"serialPort" json:"serialPort" env:"SERIAL_PORT"` // device path, serial only
	BaudRate    int             `yaml:"baudRate" json:"baudRate" env:"BAUD_RATE"`       // serial only
	Address     string          `yaml:"address" json:"address" env:"ADDRESS"`           // udp listen or tcp dial address
	ReadTimeout config.Duration `yaml:"readTimeout" json:"readTimeout"`                 // serial only
}

func (c *Config) Validate() error {
	if _, ok := openers[c.Kind]; !ok {
		return fmt.Errorf("transport.Config: %w %q, expected one of %s", ErrUnknownTransport, c.Kind, kindList())
	}

	switch c.Kind {
	case KindSerial:
		if c.SerialPort == "" {
			return errors.New("transport.Config: serial port is required")
		}
		if c.BaudRate <= 0 {
			return fmt.Errorf("transport.Config: baud rate must be positive: %d given", c.BaudRate)
		}
		if err := c.ReadTimeout.Validate(); err != nil {
			return fmt.Errorf("transport.Config: read timeout: %w", err)
		}

	case KindUDP, KindTCP:
		if c.Address == "" {
			return fmt.Errorf("transport.Config: address is required for %s", c.Kind)
		}
	}

	return nil
}

// Describe returns a short human readable name of the endpoint.
func (c *Config) Describe() string {
	if c.Kind == KindSerial {
		return fmt.Sprintf("serial:%s@%d", c.SerialPort, c.BaudRate)
	}
	return fmt.Sprintf("%s:%s", c.Kind, c.Address)
}

// Open validates cfg and opens the transport it describes.
func Open(ctx context.Context, cfg *Config) (io.ReadWriteCloser, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	rwc, err := openers[cfg.Kind](ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("error opening %s: %w", cfg.Describe(), err)
	}

	return rwc, nil
}

func kindList() string {
	var names []string
	for _, k := range Kinds() {
		names = append(names, k.String())
	}
	return strings.Join(names, ", ")
}
