package mavlink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"math"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bluenviron/gomavlib/v3/pkg/dialects/common"
	"github.com/bluenviron/gomavlib/v3/pkg/frame"
	"github.com/bluenviron/gomavlib/v3/pkg/message"
	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/roman-kulish/groundlink/internal/link"
)

const (
	// ParseErrorsThreshold defines the number of consecutive bad frames allowed
	ParseErrorsThreshold = 5

	DefaultSystemID          = 255
	DefaultComponentID       = 190 // MAV_COMP_ID_MISSIONPLANNER
	DefaultTargetSystem      = 1
	DefaultTargetComponent   = 1
	DefaultHeartbeatInterval = time.Second

	readBufferSize = 1024
	eventQueueLen  = 16
)

// WithLogger sets the logger for the link
func WithLogger(logger *slog.Logger) func(l *Link) {
	return func(l *Link) {
		l.logger = logger.With(slog.String("component", "mavlink"))
	}
}

// WithSystemID sets the identity the link uses in outgoing frames
func WithSystemID(systemID, componentID uint8) func(l *Link) {
	return func(l *Link) {
		l.systemID = systemID
		l.componentID = componentID
	}
}

// WithTarget sets the vehicle the link talks to. Frames from other systems
// are ignored; a zero target system accepts every sender.
func WithTarget(systemID, componentID uint8) func(l *Link) {
	return func(l *Link) {
		l.targetSystem = systemID
		l.targetComponent = componentID
	}
}

// WithHeartbeatInterval sets the GCS heartbeat period
func WithHeartbeatInterval(d time.Duration) func(l *Link) {
	return func(l *Link) {
		if d > 0 {
			l.heartbeatInterval = d
		}
	}
}

// WithParseErrorsThreshold sets the threshold for consecutive bad frames
func WithParseErrorsThreshold(threshold uint8) func(l *Link) {
	return func(l *Link) {
		l.parseErrorsThreshold = threshold
	}
}

// Link implements link.Link on top of a MAVLink byte stream.
//
// The transport is attached with Run. Bytes read from it are buffered and
// announced with a single EventDataAvailable until the bridge drains them
// with ReadAvailable. Feed and the telemetry accessors belong to the bridge's
// goroutine; command methods may be called concurrently with the heartbeat.
type Link struct {
	systemID          uint8
	componentID       uint8
	targetSystem      uint8
	targetComponent   uint8
	heartbeatInterval time.Duration

	parseErrorsThreshold uint8
	logger               *slog.Logger

	events chan link.Event

	// inbound buffer, shared with the reader goroutine
	mu       sync.Mutex
	pending  []byte
	notified atomic.Bool

	// decoder state, bridge goroutine only
	parser      Parser
	parseErrors uint8
	degraded    bool
	latitude    float64
	longitude   float64
	altitude    float64
	voltage     int
	current     int
	statusText  string
	heartbeat   *common.MessageHeartbeat

	// outbound, guarded by writeMu
	writeMu sync.Mutex
	writer  *frame.Writer
	axes    [len(link.Channels)]int16

	rxBytes atomic.Uint64
	txBytes atomic.Uint64
}

var _ link.Link = (*Link)(nil)

// New creates a Link with no transport attached.
func New(options ...func(l *Link)) *Link {
	l := Link{
		systemID:             DefaultSystemID,
		componentID:          DefaultComponentID,
		targetSystem:         DefaultTargetSystem,
		targetComponent:      DefaultTargetComponent,
		heartbeatInterval:    DefaultHeartbeatInterval,
		parseErrorsThreshold: ParseErrorsThreshold,
		logger:               slog.New(slog.NewTextHandler(io.Discard, nil)), // nil logger
		events:               make(chan link.Event, eventQueueLen),
	}

	for _, option := range options {
		option(&l)
	}

	return &l
}

// Events implements link.Link.
func (l *Link) Events() <-chan link.Event {
	return l.events
}

// Report publishes a transport status change on behalf of the owner of the
// transport, typically when it could not be opened.
func (l *Link) Report(ctx context.Context, status link.Status, err error) {
	l.emit(ctx, link.StatusEvent(status, err))
}

// Run attaches rwc and serves it until ctx is cancelled or reading fails.
// rwc is closed on return.
func (l *Link) Run(ctx context.Context, rwc io.ReadWriteCloser) error {
	if err := l.attach(rwc); err != nil {
		_ = rwc.Close()
		l.logger.Error("link failed", slog.String("error", err.Error()))
		l.emit(ctx, link.StatusEvent(link.StatusUnavailable, err))
		return err
	}
	defer l.detach()

	l.logger.Info("link is up")
	l.emit(ctx, link.StatusEvent(link.StatusUp, nil))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return l.readLoop(gctx, rwc)
	})
	g.Go(func() error {
		l.heartbeatLoop(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		if err := rwc.Close(); err != nil {
			l.logger.Debug("error closing transport", slog.String("error", err.Error()))
		}
		return nil
	})

	err := g.Wait()

	l.logger.Info("link stopped",
		slog.String("received", humanize.Bytes(l.rxBytes.Load())),
		slog.String("sent", humanize.Bytes(l.txBytes.Load())))

	if err != nil {
		l.logger.Error("link failed", slog.String("error", err.Error()))
		l.emit(ctx, link.StatusEvent(link.StatusUnavailable, err))
		return err
	}
	return nil
}

func (l *Link) readLoop(ctx context.Context, r io.Reader) error {
	buf := make([]byte, readBufferSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			l.rxBytes.Add(uint64(n))
			l.push(ctx, buf[:n])
		}

		if err != nil {
			if ctx.Err() != nil || errors.Is(err, fs.ErrClosed) || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("error reading transport: %w", err)
		}

		if ctx.Err() != nil {
			return nil
		}
	}
}

func (l *Link) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(l.heartbeatInterval)
	defer ticker.Stop()

	var lastErr string
	for {
		// log a failing heartbeat once per distinct error, not once per tick
		if err := l.sendHeartbeat(); err != nil {
			if err.Error() != lastErr {
				l.logger.Warn("error sending heartbeat", slog.String("error", err.Error()))
			}
			lastErr = err.Error()
		} else {
			lastErr = ""
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// push buffers inbound bytes and announces them once per drain.
func (l *Link) push(ctx context.Context, data []byte) {
	l.mu.Lock()
	l.pending = append(l.pending, data...)
	l.mu.Unlock()

	if l.notified.CompareAndSwap(false, true) {
		l.emit(ctx, link.Event{Kind: link.EventDataAvailable})
	}
}

func (l *Link) emit(ctx context.Context, ev link.Event) {
	select {
	case l.events <- ev:
	case <-ctx.Done():
	}
}

// ReadAvailable implements link.Link.
func (l *Link) ReadAvailable() []byte {
	l.mu.Lock()
	defer l.mu.Unlock()

	data := l.pending
	l.pending = nil
	l.notified.Store(false)

	return data
}

// Feed implements link.Link. It decodes every complete frame in data (and in
// bytes left over from earlier calls) and returns one event per telemetry
// update, in frame order.
func (l *Link) Feed(data []byte) []link.Event {
	var events []link.Event

	l.parser.Push(data)
	for l.parser.Next() {
		if err := l.parser.Error(); err != nil {
			l.parseErrors++
			l.logger.Warn(fmt.Sprintf("error parsing frame: %s", err.Error()))

			if l.parseErrors >= l.parseErrorsThreshold && !l.degraded {
				l.degraded = true
				events = append(events, link.StatusEvent(link.StatusDegraded, link.ErrTooManyParseErrors))
			}
			continue
		}

		l.parseErrors = 0 // reset counter
		if l.degraded {
			l.degraded = false
			events = append(events, link.StatusEvent(link.StatusUp, nil))
		}

		if ev, ok := l.handleFrame(l.parser.Current()); ok {
			events = append(events, ev)
		}
	}

	return events
}

func (l *Link) handleFrame(f frame.Frame) (link.Event, bool) {
	if l.targetSystem != 0 && f.GetSystemID() != l.targetSystem {
		return link.Event{}, false
	}

	switch m := f.GetMessage().(type) {
	case *common.MessageHeartbeat:
		l.updateHeartbeat(m)

	case *common.MessageSysStatus:
		l.voltage, l.current = batteryMillivolts(m), batteryMilliamps(m)
		return link.Event{Kind: link.EventBatteryChanged, Voltage: l.voltage, Current: l.current}, true

	case *common.MessageGlobalPositionInt:
		l.latitude = float64(m.Lat) / 1e7
		l.longitude = float64(m.Lon) / 1e7
		l.altitude = float64(m.RelativeAlt) / 1000
		return link.Event{
			Kind:             link.EventPositionChanged,
			Latitude:         l.latitude,
			Longitude:        l.longitude,
			RelativeAltitude: l.altitude,
		}, true

	case *common.MessageStatustext:
		l.statusText = m.Text
		return link.Event{Kind: link.EventFlightLogReady, Text: m.Text}, true
	}

	return link.Event{}, false
}

func (l *Link) updateHeartbeat(m *common.MessageHeartbeat) {
	prev := l.heartbeat
	l.heartbeat = m

	if prev == nil {
		l.logger.Info("vehicle heartbeat received",
			slog.String("mode", ModeName(m.CustomMode)),
			slog.Bool("armed", armed(m)))
		return
	}
	if prev.CustomMode != m.CustomMode {
		l.logger.Info("vehicle mode changed", slog.String("mode", ModeName(m.CustomMode)))
	}
	if armed(prev) != armed(m) {
		l.logger.Info("vehicle arming changed", slog.Bool("armed", armed(m)))
	}
}

func (l *Link) Latitude() float64         { return l.latitude }
func (l *Link) Longitude() float64        { return l.longitude }
func (l *Link) RelativeAltitude() float64 { return l.altitude }
func (l *Link) Battery() (int, int)       { return l.voltage, l.current }
func (l *Link) StatusText() string        { return l.statusText }

// SetAxis implements link.Link. The value is kept and sent with every
// following MANUAL_CONTROL, including the periodic one.
func (l *Link) SetAxis(ch link.Channel, value int) error {
	if !ch.Valid() {
		return fmt.Errorf("unknown channel %d", int(ch))
	}

	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	l.axes[ch] = clampInt16(value)
	return l.sendManualControl()
}

// Arm implements link.Link.
func (l *Link) Arm() error {
	return l.armDisarm(true)
}

// Disarm implements link.Link.
func (l *Link) Disarm() error {
	return l.armDisarm(false)
}

func (l *Link) armDisarm(arm bool) error {
	var param1 float32
	if arm {
		param1 = 1
	}

	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	return l.send(&common.MessageCommandLong{
		TargetSystem:    l.targetSystem,
		TargetComponent: l.targetComponent,
		Command:         common.MAV_CMD_COMPONENT_ARM_DISARM,
		Param1:          param1,
	})
}

// SetMode implements link.Link.
func (l *Link) SetMode(m link.Mode) error {
	msg, err := setModeMessage(m, l.targetSystem)
	if err != nil {
		return err
	}

	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	return l.send(msg)
}

func (l *Link) sendHeartbeat() error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	if l.writer == nil {
		return nil
	}
	if err := l.send(gcsHeartbeat()); err != nil {
		return err
	}
	return l.sendManualControl()
}

// sendManualControl must be called with writeMu held.
func (l *Link) sendManualControl() error {
	return l.send(&common.MessageManualControl{
		Target: l.targetSystem,
		X:      l.axes[link.ChannelX],
		Y:      l.axes[link.ChannelY],
		Z:      l.axes[link.ChannelZ],
		R:      l.axes[link.ChannelR],
	})
}

// send must be called with writeMu held.
func (l *Link) send(msg message.Message) error {
	if l.writer == nil {
		return link.ErrNotConnected
	}

	if err := l.writer.WriteMessage(msg); err != nil {
		return fmt.Errorf("error writing message %d: %w", msg.GetID(), err)
	}
	return nil
}

func (l *Link) attach(w io.Writer) error {
	fw := &frame.Writer{
		ByteWriter:     &countingWriter{w: w, n: &l.txBytes},
		DialectRW:      dialectRW,
		OutVersion:     frame.V2,
		OutSystemID:    l.systemID,
		OutComponentID: l.componentID,
	}
	if err := fw.Initialize(); err != nil {
		return fmt.Errorf("error creating frame writer: %w", err)
	}

	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	l.writer = fw
	return nil
}

func (l *Link) detach() {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	l.writer = nil
}

type countingWriter struct {
	w io.Writer
	n *atomic.Uint64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n.Add(uint64(n))
	return n, err
}

func clampInt16(v int) int16 {
	return int16(max(math.MinInt16, min(math.MaxInt16, v)))
}
