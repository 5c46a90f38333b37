package sim

import "github.com/pthm-cable/ecosys/systems"

// Observer receives simulator events. Notifications are synchronous and
// run in subscription order; observers must not call back into the
// simulator.
type Observer interface {
	OnRegister(s State)
	OnReset(s State)
	OnAnimalAdded(s State, a AnimalInfo)
	OnRegionSet(row, col int, m MapInfo, r systems.RegionInfo)
	OnAdvanced(s State, dt float64)
}

// BaseObserver implements Observer with no-ops. Embed it to handle only
// the events you care about.
type BaseObserver struct{}

func (BaseObserver) OnRegister(State)                                  {}
func (BaseObserver) OnReset(State)                                     {}
func (BaseObserver) OnAnimalAdded(State, AnimalInfo)                   {}
func (BaseObserver) OnRegionSet(int, int, MapInfo, systems.RegionInfo) {}
func (BaseObserver) OnAdvanced(State, float64)                         {}

// Handle identifies a subscription.
type Handle uint64

type subscription struct {
	h Handle
	o Observer
}

// bus holds observers in subscription order.
type bus struct {
	subs []subscription
	next Handle
}

// add subscribes o, returning its handle and whether it was new.
// An observer already subscribed keeps its original handle.
func (b *bus) add(o Observer) (Handle, bool) {
	for _, s := range b.subs {
		if s.o == o {
			return s.h, false
		}
	}
	b.next++
	b.subs = append(b.subs, subscription{h: b.next, o: o})
	return b.next, true
}

func (b *bus) remove(h Handle) bool {
	for i, s := range b.subs {
		if s.h == h {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return true
		}
	}
	return false
}

func (b *bus) empty() bool {
	return len(b.subs) == 0
}

func (b *bus) each(fn func(Observer)) {
	for _, s := range b.subs {
		fn(s.o)
	}
}
