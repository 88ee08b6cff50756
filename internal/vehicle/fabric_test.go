package vehicle

import (
	"slices"
	"testing"
)

func TestFabric_DeliversInOrderToEveryObserver(t *testing.T) {
	var f Fabric
	var a, b recorder
	f.Subscribe(a.observe)
	f.Subscribe(b.observe)

	f.Publish(Event{Kind: XChanged, Int: 1})
	f.Publish(Event{Kind: YChanged, Int: 2})

	want := []Kind{XChanged, YChanged}
	if !slices.Equal(a.kinds(), want) {
		t.Errorf("Observer a: expected %v, got %v", want, a.kinds())
	}
	if !slices.Equal(b.kinds(), want) {
		t.Errorf("Observer b: expected %v, got %v", want, b.kinds())
	}
}

func TestFabric_NestedPublishIsQueued(t *testing.T) {
	var f Fabric
	var order []string

	f.Subscribe(func(ev Event) {
		order = append(order, "first:"+ev.Kind.String())
		if ev.Kind == XChanged {
			f.Publish(Event{Kind: CommandFailed})
		}
	})
	f.Subscribe(func(ev Event) {
		order = append(order, "second:"+ev.Kind.String())
	})

	f.Publish(Event{Kind: XChanged})

	want := []string{
		"first:x",
		"second:x",
		"first:commandFailed",
		"second:commandFailed",
	}
	if !slices.Equal(order, want) {
		t.Errorf("Expected delivery order %v, got %v", want, order)
	}
}

func TestFabric_Unsubscribe(t *testing.T) {
	var f Fabric
	var a, b recorder
	cancelA := f.Subscribe(a.observe)
	f.Subscribe(b.observe)

	f.Publish(Event{Kind: LogChanged})
	cancelA()
	cancelA() // second call is a no-op
	f.Publish(Event{Kind: HeightChanged})

	if len(a.events) != 1 {
		t.Errorf("Expected 1 event for cancelled observer, got %d", len(a.events))
	}
	if len(b.events) != 2 {
		t.Errorf("Expected 2 events for remaining observer, got %d", len(b.events))
	}
	if f.Len() != 1 {
		t.Errorf("Expected 1 subscriber, got %d", f.Len())
	}
}

func TestFabric_UnsubscribeDuringDelivery(t *testing.T) {
	var f Fabric
	var b recorder
	var cancelB func()

	f.Subscribe(func(Event) { cancelB() })
	cancelB = f.Subscribe(b.observe)

	f.Publish(Event{Kind: LogChanged})

	if len(b.events) != 0 {
		t.Errorf("Expected removed observer to miss the event, got %v", b.events)
	}
}

func TestFabric_SubscribeDuringDelivery(t *testing.T) {
	var f Fabric
	var late recorder
	subscribed := false

	f.Subscribe(func(Event) {
		if !subscribed {
			subscribed = true
			f.Subscribe(late.observe)
		}
	})

	f.Publish(Event{Kind: XChanged})
	f.Publish(Event{Kind: YChanged})

	if !slices.Equal(late.kinds(), []Kind{YChanged}) {
		t.Errorf("Expected late observer to see only y, got %v", late.kinds())
	}
}
