package vehicle

import (
	"errors"
	"slices"
	"testing"

	"github.com/roman-kulish/groundlink/internal/link"
)

func TestBridge_SetAxisForwardsOnlyChanges(t *testing.T) {
	fl := newFakeLink()
	b := NewBridge(fl)
	var rec recorder
	b.Subscribe(rec.observe)

	for _, v := range []int{10, 10, 11} {
		if err := b.SetAxis(link.ChannelX, v); err != nil {
			t.Fatalf("SetAxis(%d) failed: %v", v, err)
		}
	}

	wantCalls := []string{"axis x=10", "axis x=11"}
	if !slices.Equal(fl.calls, wantCalls) {
		t.Errorf("Expected link calls %v, got %v", wantCalls, fl.calls)
	}
	wantEvents := []Event{
		{Kind: XChanged, Int: 10},
		{Kind: XChanged, Int: 11},
	}
	if !slices.Equal(rec.events, wantEvents) {
		t.Errorf("Expected events %v, got %v", wantEvents, rec.events)
	}
}

func TestBridge_SetAxisChannels(t *testing.T) {
	tests := []struct {
		ch   link.Channel
		want string
		get  func(*State) int
	}{
		{link.ChannelX, "axis x=-1000", (*State).X},
		{link.ChannelY, "axis y=-1000", (*State).Y},
		{link.ChannelZ, "axis z=-1000", (*State).Z},
		{link.ChannelR, "axis r=-1000", (*State).R},
	}

	for _, tt := range tests {
		t.Run(tt.ch.String(), func(t *testing.T) {
			fl := newFakeLink()
			b := NewBridge(fl)

			if err := b.SetAxis(tt.ch, -1000); err != nil {
				t.Fatalf("SetAxis failed: %v", err)
			}
			if !slices.Equal(fl.calls, []string{tt.want}) {
				t.Errorf("Expected link calls [%s], got %v", tt.want, fl.calls)
			}
			if got := tt.get(b.State()); got != -1000 {
				t.Errorf("Expected stored value -1000, got %d", got)
			}
		})
	}
}

func TestBridge_SetAxisUnknownChannel(t *testing.T) {
	fl := newFakeLink()
	b := NewBridge(fl)

	err := b.SetAxis(link.Channel(9), 5)
	if !errors.Is(err, ErrUnknownChannel) {
		t.Errorf("Expected ErrUnknownChannel, got %v", err)
	}
	if len(fl.calls) != 0 {
		t.Errorf("Expected no link calls, got %v", fl.calls)
	}
}

func TestBridge_SetAxisLinkFailure(t *testing.T) {
	fl := newFakeLink()
	fl.failWith = link.ErrNotConnected
	b := NewBridge(fl)
	var rec recorder
	b.Subscribe(rec.observe)

	err := b.SetAxis(link.ChannelZ, 500)
	if !errors.Is(err, link.ErrNotConnected) {
		t.Fatalf("Expected ErrNotConnected, got %v", err)
	}

	// the state keeps the value and the failure is observable
	if b.State().Z() != 500 {
		t.Errorf("Expected stored z 500, got %d", b.State().Z())
	}
	want := []Kind{ZChanged, CommandFailed}
	if !slices.Equal(rec.kinds(), want) {
		t.Errorf("Expected events %v, got %v", want, rec.kinds())
	}

	// a later successful call does not report the stale error
	fl.failWith = nil
	if err := b.SetAxis(link.ChannelZ, 501); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
}

func TestBridge_SetArmedIsNotDeduplicated(t *testing.T) {
	fl := newFakeLink()
	b := NewBridge(fl)

	for _, armed := range []bool{true, true, false, false} {
		if err := b.SetArmed(armed); err != nil {
			t.Fatalf("SetArmed(%t) failed: %v", armed, err)
		}
	}

	want := []string{"arm", "arm", "disarm", "disarm"}
	if !slices.Equal(fl.calls, want) {
		t.Errorf("Expected link calls %v, got %v", want, fl.calls)
	}
}

func TestBridge_SetArmedFailure(t *testing.T) {
	fl := newFakeLink()
	fl.failWith = errors.New("write: broken pipe")
	b := NewBridge(fl)
	var rec recorder
	b.Subscribe(rec.observe)

	err := b.SetArmed(true)
	if !errors.Is(err, fl.failWith) {
		t.Fatalf("Expected wrapped link error, got %v", err)
	}
	if !slices.Equal(rec.kinds(), []Kind{CommandFailed}) {
		t.Errorf("Expected a CommandFailed event, got %v", rec.kinds())
	}
}

func TestBridge_SetFlightMode(t *testing.T) {
	tests := []struct {
		mode    int
		want    []string
		wantErr error
	}{
		{mode: 0, want: []string{"mode RETURN"}},
		{mode: 1, want: []string{"mode MANUAL"}},
		{mode: 2, want: []string{"mode ASSIST_ALTITUDE"}},
		{mode: 3, want: []string{"mode ASSIST_POSITION"}},
		{mode: 4, want: []string{"mode AUTO_MISSION"}},
		{mode: 5, want: []string{"mode AUTO_LOITER"}},
		{mode: 6, want: nil, wantErr: ErrUnknownFlightMode},
		{mode: 99, want: nil, wantErr: ErrUnknownFlightMode},
		{mode: -1, want: nil, wantErr: ErrUnknownFlightMode},
	}

	for _, tt := range tests {
		t.Run(link.Mode(tt.mode).String(), func(t *testing.T) {
			fl := newFakeLink()
			b := NewBridge(fl)

			err := b.SetFlightMode(tt.mode)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected error %v, got %v", tt.wantErr, err)
			}
			if !slices.Equal(fl.calls, tt.want) {
				t.Errorf("Expected link calls %v, got %v", tt.want, fl.calls)
			}
		})
	}
}

func TestBridge_SetFlightModeRepeated(t *testing.T) {
	fl := newFakeLink()
	b := NewBridge(fl)

	_ = b.SetFlightMode(3)
	_ = b.SetFlightMode(3)

	want := []string{"mode ASSIST_POSITION", "mode ASSIST_POSITION"}
	if !slices.Equal(fl.calls, want) {
		t.Errorf("Expected link calls %v, got %v", want, fl.calls)
	}
}
