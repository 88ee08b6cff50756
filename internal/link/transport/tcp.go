package transport

import (
	"context"
	"io"
	"net"
	"time"
)

const dialTimeout = 5 * time.Second

// openTCP dials a TCP endpoint such as a SITL instance or a telemetry radio
// bridged to the network.
func openTCP(ctx context.Context, cfg *Config) (io.ReadWriteCloser, error) {
	d := net.Dialer{Timeout: dialTimeout}
	return d.DialContext(ctx, "tcp", cfg.Address)
}
