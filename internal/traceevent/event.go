package traceevent

// Phase is the single-character event type tag from the Trace Event Format.
type Phase string

// Phases used by this converter. The format defines many more (counters,
// flows, async events); we only emit these four.
const (
	PhaseBegin    Phase = "B"
	PhaseEnd      Phase = "E"
	PhaseInstant  Phase = "i"
	PhaseMetadata Phase = "M"
)

// ScopeProcess is the instant-event scope we emit ("p" = process).
const ScopeProcess = "p"

// Args holds the key-value pairs shown in the event detail box. Values are
// strings or integers.
type Args map[string]any

// Event is a single trace event record. Fields left nil are absent and are
// not serialized.
type Event struct {
	Name  string   `json:"name"`
	Phase Phase    `json:"ph"`
	Args  Args     `json:"args,omitempty"`
	TS    *float64 `json:"ts,omitempty"`
	PID   *int64   `json:"pid,omitempty"`
	TID   *int64   `json:"tid,omitempty"`
	Scope string   `json:"s,omitempty"`
}

// Metadata event names understood by the viewer.
const (
	nameProcessName      = "process_name"
	nameThreadName       = "thread_name"
	nameProcessLabels    = "process_labels"
	nameProcessSortIndex = "process_sort_index"
	nameThreadSortIndex  = "thread_sort_index"
)

// Begin creates a span-opening event. ts is in nanoseconds; the event buffer
// converts to microseconds on commit.
func Begin(name string, ts int64, args Args) *Event {
	return &Event{Name: name, Phase: PhaseBegin, TS: f64(ts), Args: args}
}

// End creates a span-closing event.
func End(name string, ts int64, args Args) *Event {
	return &Event{Name: name, Phase: PhaseEnd, TS: f64(ts), Args: args}
}

// Instant creates a standalone event with process scope.
func Instant(name string, pid, tid, ts int64, args Args) *Event {
	return &Event{
		Name:  name,
		Phase: PhaseInstant,
		TS:    f64(ts),
		PID:   &pid,
		TID:   &tid,
		Args:  args,
		Scope: ScopeProcess,
	}
}

// ProcessName associates a display name with a process.
func ProcessName(pid int64, name string) *Event {
	return &Event{
		Name:  nameProcessName,
		Phase: PhaseMetadata,
		PID:   &pid,
		Args:  Args{"name": name},
	}
}

// ThreadName associates a display name with a (pid, tid) pair.
func ThreadName(pid, tid int64, name string) *Event {
	return &Event{
		Name:  nameThreadName,
		Phase: PhaseMetadata,
		PID:   &pid,
		TID:   &tid,
		Args:  Args{"name": name},
	}
}

// ProcessLabel attaches a descriptive label to a process.
func ProcessLabel(pid int64, label string) *Event {
	return &Event{
		Name:  nameProcessLabels,
		Phase: PhaseMetadata,
		PID:   &pid,
		Args:  Args{"labels": label},
	}
}

// ProcessSortIndex controls the ordering of processes in the viewer; lower
// values sort first.
func ProcessSortIndex(pid, index int64) *Event {
	return &Event{
		Name:  nameProcessSortIndex,
		Phase: PhaseMetadata,
		PID:   &pid,
		Args:  Args{"sort_index": index},
	}
}

// ThreadSortIndex controls the ordering of threads within a process.
func ThreadSortIndex(pid, tid, index int64) *Event {
	return &Event{
		Name:  nameThreadSortIndex,
		Phase: PhaseMetadata,
		PID:   &pid,
		TID:   &tid,
		Args:  Args{"sort_index": index},
	}
}

// IsDuration reports whether the event delimits a span.
func (e *Event) IsDuration() bool {
	return e.Phase == PhaseBegin || e.Phase == PhaseEnd
}

// IsThreadName reports whether the event is thread_name metadata.
func (e *Event) IsThreadName() bool {
	return e.Phase == PhaseMetadata && e.Name == nameThreadName
}

func f64(ns int64) *float64 {
	v := float64(ns)
	return &v
}
