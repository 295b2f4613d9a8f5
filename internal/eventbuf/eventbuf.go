package eventbuf

import (
	"sort"

	"schedtrace/internal/pidmap"
	"schedtrace/internal/traceevent"
)

// timeConversion scales perf's nanoseconds to the viewer's microseconds.
const timeConversion = 1000

// PendingQueue is one deferred queue handed to finalization: the track key
// it was parked under and its events in arrival order. Timestamps on these
// events are already in microseconds.
type PendingQueue struct {
	Track  int64
	Events []*traceevent.Event
}

// List accumulates the output event sequence for one run.
type List struct {
	pids    *pidmap.Mapper
	events  []*traceevent.Event
	pending map[int64][]*traceevent.Event
}

// New creates an empty List resolving identities through pids.
func New(pids *pidmap.Mapper) *List {
	return &List{
		pids:    pids,
		pending: make(map[int64][]*traceevent.Event),
	}
}

// Append converts the event's timestamp from ns to µs and commits it. Use
// for events that already carry their final outer identifiers.
func (l *List) Append(ev *traceevent.Event) {
	scale(ev)
	l.events = append(l.events, ev)
}

// AppendRaw commits an event whose timestamp was already converted, such as
// a replayed pending event being relocated by finalization.
func (l *List) AppendRaw(ev *traceevent.Event) {
	l.events = append(l.events, ev)
}

// AppendByInner converts the timestamp, then tries to stamp the event with
// the outer (pid, tid) pair for inner. If the mapping is not yet known the
// event is parked until ResolveMapping learns it.
func (l *List) AppendByInner(inner int64, ev *traceevent.Event) {
	scale(ev)
	out, ok := l.pids.LookupOuter(inner)
	if !ok {
		l.pending[inner] = append(l.pending[inner], ev)
		return
	}
	ev.PID, ev.TID = &out.PID, &out.TID
	l.events = append(l.events, ev)
}

// ResolveMapping feeds new identity evidence to the resolver. When this
// establishes a new mapping, every event parked under inner is stamped and
// committed in its original arrival order.
func (l *List) ResolveMapping(inner, pid, tid int64) {
	if !l.pids.Resolve(inner, pid, tid) {
		return
	}
	queue, ok := l.pending[inner]
	if !ok {
		return
	}
	for _, ev := range queue {
		p, t := pid, tid
		ev.PID, ev.TID = &p, &t
		l.events = append(l.events, ev)
	}
	delete(l.pending, inner)
}

// VisitThreadNames applies fn to every committed thread_name metadata
// event, in place. The sequence order is never changed.
func (l *List) VisitThreadNames(fn func(*traceevent.Event)) {
	for _, ev := range l.events {
		if ev.IsThreadName() {
			fn(ev)
		}
	}
}

// VisitAll applies fn to every committed event, in place.
func (l *List) VisitAll(fn func(*traceevent.Event)) {
	for _, ev := range l.events {
		fn(ev)
	}
}

// DrainPending removes and returns the still-unresolved queues, sorted by
// track key so finalization is deterministic.
func (l *List) DrainPending() []PendingQueue {
	out := make([]PendingQueue, 0, len(l.pending))
	for track, events := range l.pending {
		out = append(out, PendingQueue{Track: track, Events: events})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Track < out[j].Track })
	l.pending = make(map[int64][]*traceevent.Event)
	return out
}

// Events returns the committed sequence.
func (l *List) Events() []*traceevent.Event {
	return l.events
}

func scale(ev *traceevent.Event) {
	if ev.TS != nil {
		*ev.TS /= timeConversion
	}
}
