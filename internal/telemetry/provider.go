package telemetry

import (
	"context"
)

// Provider returns the most recent telemetry known to the ground station.
type Provider interface {
	Telemetry(ctx context.Context) (Telemetry, error)
}
