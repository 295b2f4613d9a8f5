package pidmap

import "sort"

// Outer is a user-visible (pid, tid) pair as seen from outside the
// namespace.
type Outer struct {
	PID int64
	TID int64
}

// Backup is a tentative inner-to-outer association surfaced by
// DrainBackups.
type Backup struct {
	Inner int64
	Outer Outer
}

// Mapper maintains the identifier mappings for one engine run.
type Mapper struct {
	innerToOuter map[int64]Outer
	outerToInner map[Outer]int64
	backups      map[int64]Outer
	names        map[int64]string
	seenPIDs     map[int64]struct{}
	pseudoPIDs   map[int64]struct{}
	pseudoOrder  []int64
}

// New creates an empty Mapper.
func New() *Mapper {
	return &Mapper{
		innerToOuter: make(map[int64]Outer),
		outerToInner: make(map[Outer]int64),
		backups:      make(map[int64]Outer),
		names:        make(map[int64]string),
		seenPIDs:     make(map[int64]struct{}),
		pseudoPIDs:   make(map[int64]struct{}),
	}
}

// Resolve establishes the inner -> (pid, tid) mapping if it is not already
// set and pid is not zero. It reports whether a new mapping was created,
// which is the caller's signal to replay any events deferred on inner.
// A second call for an already-mapped inner id is a no-op, even with a
// different outer pair: identity is established exactly once.
func (m *Mapper) Resolve(inner, pid, tid int64) bool {
	if _, ok := m.innerToOuter[inner]; ok || pid == 0 {
		return false
	}
	out := Outer{PID: pid, TID: tid}
	m.innerToOuter[inner] = out
	m.outerToInner[out] = inner
	return true
}

// Backup records a tentative association from inner to (pid, tid). Unlike
// Resolve, later backups overwrite earlier ones freely.
func (m *Mapper) Backup(inner, pid, tid int64) {
	m.backups[inner] = Outer{PID: pid, TID: tid}
}

// DrainBackups returns every backup whose inner id still has no confirmed
// mapping, sorted by inner id so finalization is deterministic. It is used
// exactly once, at end of stream.
func (m *Mapper) DrainBackups() []Backup {
	var out []Backup
	for inner, outer := range m.backups {
		if _, ok := m.innerToOuter[inner]; !ok {
			out = append(out, Backup{Inner: inner, Outer: outer})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Inner < out[j].Inner })
	return out
}

// LookupOuter maps an inner id to its outer pair. A successful lookup marks
// the outer pid as observed, which fences off the pseudo pid allocator.
func (m *Mapper) LookupOuter(inner int64) (Outer, bool) {
	out, ok := m.innerToOuter[inner]
	if ok {
		m.seenPIDs[out.PID] = struct{}{}
	}
	return out, ok
}

// LookupInner maps an outer (pid, tid) pair back to its inner id.
func (m *Mapper) LookupInner(pid, tid int64) (int64, bool) {
	inner, ok := m.outerToInner[Outer{PID: pid, TID: tid}]
	return inner, ok
}

// RecordName associates a program name with an inner id. The first recorded
// name wins; later calls are no-ops.
func (m *Mapper) RecordName(inner int64, name string) {
	if _, ok := m.names[inner]; !ok {
		m.names[inner] = name
	}
}

// Name returns the recorded program name for an inner id.
func (m *Mapper) Name(inner int64) (string, bool) {
	name, ok := m.names[inner]
	return name, ok
}

// SeenPIDs returns the outer pids observed through LookupOuter, sorted.
func (m *Mapper) SeenPIDs() []int64 {
	out := make([]int64, 0, len(m.seenPIDs))
	for pid := range m.seenPIDs {
		out = append(out, pid)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// AllocPseudoPID returns the smallest non-negative integer that is neither
// an observed outer pid nor a previously allocated pseudo pid. Allocated
// values are never reused within a run.
func (m *Mapper) AllocPseudoPID() int64 {
	var pid int64
	for {
		_, pseudo := m.pseudoPIDs[pid]
		_, seen := m.seenPIDs[pid]
		if !pseudo && !seen {
			break
		}
		pid++
	}
	m.pseudoPIDs[pid] = struct{}{}
	m.pseudoOrder = append(m.pseudoOrder, pid)
	return pid
}

// PseudoPIDs returns every allocated pseudo pid in allocation order.
func (m *Mapper) PseudoPIDs() []int64 {
	out := make([]int64, len(m.pseudoOrder))
	copy(out, m.pseudoOrder)
	return out
}
