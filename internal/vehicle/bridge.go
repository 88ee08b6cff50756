package vehicle

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/groundlink/internal/link"
)

// WithLogger sets the logger for the bridge
func WithLogger(logger *slog.Logger) func(b *Bridge) {
	return func(b *Bridge) {
		b.logger = logger.With(slog.String("component", "bridge"))
	}
}

// Bridge mirrors vehicle state from a Link and dispatches user commands to it.
//
// Inbound, link events are routed to the State setters; the State publishes
// real changes on the Fabric. Outbound, axis commands go through the State
// too, and the Bridge's own fabric observer forwards axis changes to the
// Link, so the Link only receives values that differ from the last one sent.
//
// A Bridge is single-threaded: all calls must come from one goroutine (see
// Loop). The Link is borrowed, never closed by the Bridge.
type Bridge struct {
	link   link.Link
	state  *State
	fabric *Fabric
	logger *slog.Logger

	// forwardErr holds the Link failure of the axis forward triggered by the
	// SetAxis call in progress.
	forwardErr error
}

// NewBridge creates a Bridge bound to l.
func NewBridge(l link.Link, options ...func(b *Bridge)) *Bridge {
	b := Bridge{
		link:   l,
		fabric: &Fabric{},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // nil logger
	}
	b.state = NewState(b.fabric.Publish)

	for _, option := range options {
		option(&b)
	}

	b.fabric.Subscribe(b.forwardAxis)

	return &b
}

// State returns the mirrored vehicle state.
func (b *Bridge) State() *State {
	return b.state
}

// Subscribe registers an observer for change notifications.
func (b *Bridge) Subscribe(o Observer) (cancel func()) {
	return b.fabric.Subscribe(o)
}

// HandleLinkEvent routes one Link notification to its handler. Telemetry
// updates caused by it, and their notifications, happen before it returns and
// in the order the Link reported them.
func (b *Bridge) HandleLinkEvent(ev link.Event) {
	switch ev.Kind {
	case link.EventDataAvailable:
		b.readData()

	case link.EventBatteryChanged:
		b.state.SetBattery(ev.Voltage, ev.Current)

	case link.EventPositionChanged:
		b.updateLocation(ev)

	case link.EventFlightLogReady:
		b.state.SetLog(ev.Text)

	case link.EventStatusChanged:
		b.updateLinkStatus(ev)

	default:
		b.logger.Warn("ignoring unknown link event", slog.String("kind", ev.Kind.String()))
	}
}

// readData drains whatever the Link has buffered and lets its decoder work
// out what changed.
func (b *Bridge) readData() {
	data := b.link.ReadAvailable()
	if len(data) == 0 {
		return
	}

	events := b.link.Feed(data)
	b.logger.Debug("fed link decoder",
		slog.String("bytes", humanize.Bytes(uint64(len(data)))),
		slog.Int("events", len(events)))

	for _, ev := range events {
		if ev.Kind == link.EventDataAvailable {
			continue // the decoder never asks to be fed from within Feed
		}
		b.HandleLinkEvent(ev)
	}
}

// updateLocation applies the position carried by ev. Every fix of a
// multi-frame chunk gets its own event.
func (b *Bridge) updateLocation(ev link.Event) {
	b.state.SetLatitude(ev.Latitude)
	b.state.SetLongitude(ev.Longitude)
	b.state.SetHeight(ev.RelativeAltitude)
}

func (b *Bridge) updateLinkStatus(ev link.Event) {
	var detail string
	if ev.Err != nil {
		detail = ev.Err.Error()
	}

	switch ev.Status {
	case link.StatusUp:
		b.logger.Info("link is up")
	case link.StatusUnavailable, link.StatusDegraded:
		b.logger.Warn("link is "+ev.Status.String(), slog.String("reason", detail))
	}

	b.state.setLinkStatus(ev.Status.String(), detail)
}

// forwardAxis sends genuinely new axis values to the Link.
func (b *Bridge) forwardAxis(ev Event) {
	ch, ok := ev.Kind.Axis()
	if !ok {
		return
	}

	if err := b.link.SetAxis(ch, ev.Int); err != nil {
		err = fmt.Errorf("setting axis %s: %w", ch, err)
		b.forwardErr = err
		b.commandFailed(err)
	}
}

func (b *Bridge) commandFailed(err error) {
	b.logger.Error(err.Error())
	b.fabric.Publish(Event{Kind: CommandFailed, Text: "command failed", Detail: err.Error()})
}
