package vehicle

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/roman-kulish/groundlink/internal/link"
	"github.com/roman-kulish/groundlink/internal/telemetry"
)

const defaultQueueLen = 64

// ErrLoopStopped is returned by requests made after the loop has exited
var ErrLoopStopped = errors.New("event loop stopped")

type commandReq struct {
	cmd   Command
	reply chan error
}

type stateReq struct {
	reply chan Snapshot
}

type subscribeReq struct {
	ch chan Event
}

// WithQueueLen sets the buffer size of subscriber channels.
func WithQueueLen(n int) func(l *Loop) {
	return func(l *Loop) {
		if n > 0 {
			l.queueLen = n
		}
	}
}

// WithLoopLogger sets the logger for the loop
func WithLoopLogger(logger *slog.Logger) func(l *Loop) {
	return func(l *Loop) {
		l.logger = logger.With(slog.String("component", "loop"))
	}
}

// Loop is the single goroutine that owns a Bridge. Link events, commands,
// state reads and subscriptions are all serialized through Run, so the
// Bridge never needs a lock.
type Loop struct {
	bridge *Bridge
	events <-chan link.Event

	cmdCh       chan commandReq
	stateReqCh  chan stateReq
	subscribeCh chan subscribeReq
	unsubCh     chan chan Event
	done        chan struct{}

	queueLen int
	logger   *slog.Logger
}

// NewLoop creates a Loop driving b with notifications read from events.
func NewLoop(b *Bridge, events <-chan link.Event, options ...func(l *Loop)) *Loop {
	l := Loop{
		bridge:      b,
		events:      events,
		cmdCh:       make(chan commandReq, 32),
		stateReqCh:  make(chan stateReq, 32),
		subscribeCh: make(chan subscribeReq), // handed over only to a running loop
		unsubCh:     make(chan chan Event, 32),
		done:        make(chan struct{}),
		queueLen:    defaultQueueLen,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)), // nil logger
	}

	for _, option := range options {
		option(&l)
	}

	return &l
}

// Submit hands cmd to the loop and waits for its result.
func (l *Loop) Submit(ctx context.Context, cmd Command) error {
	req := commandReq{cmd: cmd, reply: make(chan error, 1)}
	select {
	case l.cmdCh <- req:
	case <-l.done:
		return ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.reply:
		return err
	case <-l.done:
		return ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State returns a snapshot of the mirrored vehicle state.
func (l *Loop) State(ctx context.Context) (Snapshot, error) {
	req := stateReq{reply: make(chan Snapshot, 1)}
	select {
	case l.stateReqCh <- req:
	case <-l.done:
		return Snapshot{}, ErrLoopStopped
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}

	select {
	case st := <-req.reply:
		return st, nil
	case <-l.done:
		return Snapshot{}, ErrLoopStopped
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

// Telemetry implements telemetry.Provider.
func (l *Loop) Telemetry(ctx context.Context) (telemetry.Telemetry, error) {
	st, err := l.State(ctx)
	return st.Telemetry, err
}

// Subscribe returns a channel receiving every change notification published
// after Subscribe returns. A subscriber that falls behind loses events
// instead of stalling the loop. The channel is closed by the returned
// function or when the loop exits; it is returned already closed when the
// loop has stopped.
func (l *Loop) Subscribe(ctx context.Context) (<-chan Event, func()) {
	ch := make(chan Event, l.queueLen)

	select {
	case l.subscribeCh <- subscribeReq{ch: ch}:
	case <-l.done:
		close(ch)
		return ch, func() {}
	case <-ctx.Done():
		close(ch)
		return ch, func() {}
	}

	unsub := func() {
		select {
		case l.unsubCh <- ch:
		case <-l.done:
		}
	}
	return ch, unsub
}

// Run processes inputs until ctx is cancelled or the link event channel is
// closed.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.done)

	subs := map[chan Event]func(){}
	defer func() {
		for ch, cancel := range subs {
			cancel()
			close(ch)
		}
	}()

	l.logger.Info("event loop started")
	defer l.logger.Info("event loop stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-l.events:
			if !ok {
				return nil
			}
			l.bridge.HandleLinkEvent(ev)

		case req := <-l.cmdCh:
			err := req.cmd.Apply(l.bridge)
			if err != nil {
				l.logger.Debug("command rejected",
					slog.String("type", string(req.cmd.Type())),
					slog.String("error", err.Error()))
			}
			req.reply <- err

		case req := <-l.stateReqCh:
			req.reply <- l.bridge.State().Snapshot()

		case req := <-l.subscribeCh:
			ch := req.ch
			subs[ch] = l.bridge.Subscribe(func(ev Event) {
				select {
				case ch <- ev:
				default:
					// slow subscriber -> drop event
				}
			})

		case ch := <-l.unsubCh:
			if cancel, ok := subs[ch]; ok {
				cancel()
				delete(subs, ch)
				close(ch)
			}
		}
	}
}

var _ telemetry.Provider = (*Loop)(nil)
