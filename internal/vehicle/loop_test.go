package vehicle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/roman-kulish/groundlink/internal/link"
)

func startLoop(t *testing.T, fl *fakeLink) (*Loop, context.CancelFunc, <-chan error) {
	t.Helper()

	l := NewLoop(NewBridge(fl), fl.Events(), WithQueueLen(32))
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx) }()

	t.Cleanup(cancel)
	return l, cancel, errCh
}

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatal("Subscription closed unexpectedly")
		}
		return ev
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for event")
	}
	return Event{}
}

func TestLoop_CommandsAndNotifications(t *testing.T) {
	fl := newFakeLink()
	l, _, _ := startLoop(t, fl)
	ctx := context.Background()

	events, unsub := l.Subscribe(ctx)
	defer unsub()

	if err := l.Submit(ctx, AxisCommand{At: time.Now(), Channel: link.ChannelY, Value: 250}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if ev := receive(t, events); ev.Kind != YChanged || ev.Int != 250 {
		t.Errorf("Expected y(250), got %v", ev)
	}

	err := l.Submit(ctx, FlightModeCommand{At: time.Now(), Mode: 42})
	if !errors.Is(err, ErrUnknownFlightMode) {
		t.Errorf("Expected ErrUnknownFlightMode, got %v", err)
	}

	fl.events <- link.Event{Kind: link.EventBatteryChanged, Voltage: 12000, Current: 100}
	if ev := receive(t, events); ev.Kind != VoltageChanged || ev.Int != 12000 {
		t.Errorf("Expected voltage(12000), got %v", ev)
	}
	if ev := receive(t, events); ev.Kind != CurrentChanged || ev.Int != 100 {
		t.Errorf("Expected current(100), got %v", ev)
	}

	st, err := l.State(ctx)
	if err != nil {
		t.Fatalf("State failed: %v", err)
	}
	if st.Y != 250 || st.Voltage != 12000 {
		t.Errorf("Unexpected snapshot: %+v", st)
	}
}

func TestLoop_Unsubscribe(t *testing.T) {
	fl := newFakeLink()
	l, _, _ := startLoop(t, fl)
	ctx := context.Background()

	events, unsub := l.Subscribe(ctx)
	unsub()

	select {
	case _, ok := <-events:
		if ok {
			t.Error("Expected no events after unsubscribe")
		}
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for subscription to close")
	}
}

func TestLoop_StopClosesSubscriptions(t *testing.T) {
	fl := newFakeLink()
	l, cancel, errCh := startLoop(t, fl)
	ctx := context.Background()

	events, _ := l.Subscribe(ctx)
	// make sure the subscription is registered before stopping
	if _, err := l.State(ctx); err != nil {
		t.Fatalf("State failed: %v", err)
	}
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for loop to stop")
	}

	if _, ok := <-events; ok {
		t.Error("Expected subscription channel to be closed")
	}
	if err := l.Submit(ctx, ArmCommand{Armed: true}); !errors.Is(err, ErrLoopStopped) {
		t.Errorf("Expected ErrLoopStopped, got %v", err)
	}
	if _, err := l.State(ctx); !errors.Is(err, ErrLoopStopped) {
		t.Errorf("Expected ErrLoopStopped, got %v", err)
	}
}

func TestLoop_ClosedLinkEventsStopsLoop(t *testing.T) {
	fl := newFakeLink()
	_, _, errCh := startLoop(t, fl)

	close(fl.events)

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Expected nil error, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for loop to stop")
	}
}

func TestLoop_SubscribeAfterStop(t *testing.T) {
	fl := newFakeLink()
	l, cancel, errCh := startLoop(t, fl)

	cancel()
	select {
	case <-errCh:
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for loop to stop")
	}

	for i := range 30 {
		events, unsub := l.Subscribe(context.Background())
		select {
		case _, ok := <-events:
			if ok {
				t.Fatalf("Subscription %d: expected closed channel, got an event", i)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("Subscription %d: expected closed channel after the loop stopped", i)
		}
		unsub()
	}
}
