package vehicle

// Observer receives change notifications.
type Observer func(Event)

type subscription struct {
	observer Observer
	active   bool
}

// Fabric delivers every published event to each subscribed observer exactly
// once, synchronously and in publish order. It is not safe for concurrent
// use: the bridge and its event loop are its only callers.
type Fabric struct {
	subs []*subscription

	queue      []Event
	delivering bool
}

// Subscribe registers o and returns a function that removes it again.
// Observers added while an event is being delivered do not see that event.
// Removing an observer mid-delivery stops it from receiving the rest of it.
func (f *Fabric) Subscribe(o Observer) (cancel func()) {
	sub := &subscription{observer: o, active: true}
	f.subs = append(f.subs, sub)

	return func() {
		if !sub.active {
			return
		}
		sub.active = false
		for i, s := range f.subs {
			if s == sub {
				f.subs = append(f.subs[:i:i], f.subs[i+1:]...)
				break
			}
		}
	}
}

// Publish delivers ev to the current observers. Events published from inside
// an observer are delivered after ev has reached every observer, so each
// observer sees events in the same order.
func (f *Fabric) Publish(ev Event) {
	f.queue = append(f.queue, ev)
	if f.delivering {
		return
	}

	f.delivering = true
	defer func() {
		f.delivering = false
		f.queue = nil
	}()

	for len(f.queue) > 0 {
		next := f.queue[0]
		f.queue = f.queue[1:]

		for _, sub := range f.subs {
			if sub.active {
				sub.observer(next)
			}
		}
	}
}

// Len returns the number of subscribed observers.
func (f *Fabric) Len() int {
	return len(f.subs)
}
