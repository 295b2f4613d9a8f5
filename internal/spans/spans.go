// Package spans pairs Begin and End events into emitted durations.
//
// The legacy trace viewer expects each span as a contiguous Begin/End pair
// in the output, so begins are held back until their matching end arrives
// and the two are committed together. Zero- and negative-length spans are
// dropped outright: they are invisible in the viewer at any zoom level.
package spans

import (
	"schedtrace/internal/eventbuf"
	"schedtrace/internal/traceevent"
)

// Tracker is a per-track Begin/End pairing state machine. Track keys are
// inner pids for real threads, negated CPU indexes for the per-CPU tracks,
// and a fixed sentinel for the long-wait track.
type Tracker struct {
	events *eventbuf.List
	begins map[int64]*traceevent.Event
}

// New creates a Tracker committing completed pairs to events.
func New(events *eventbuf.List) *Tracker {
	return &Tracker{
		events: events,
		begins: make(map[int64]*traceevent.Event),
	}
}

// Add feeds the next duration event for a track.
//
// A Begin is stored; a second Begin for the same track replaces the stored
// one. This last-Begin-wins behavior is inherited from the observed
// recordings, where overlapping begins on one track do not occur; it is
// deliberately not validated. An End pairs with the stored Begin and both
// are committed iff End is strictly later; an End with no stored Begin, or
// one that is not later, is discarded silently.
func (t *Tracker) Add(track int64, ev *traceevent.Event) {
	switch ev.Phase {
	case traceevent.PhaseBegin:
		t.begins[track] = ev
	case traceevent.PhaseEnd:
		begin, ok := t.begins[track]
		if !ok {
			return
		}
		delete(t.begins, track)
		if *begin.TS < *ev.TS {
			t.events.AppendByInner(track, begin)
			t.events.AppendByInner(track, ev)
		}
	}
}
