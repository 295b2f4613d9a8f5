package engine

import (
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"schedtrace/internal/eventbuf"
	"schedtrace/internal/perfparse"
	"schedtrace/internal/pidmap"
	"schedtrace/internal/schedstats"
	"schedtrace/internal/spans"
	"schedtrace/internal/traceevent"
)

// waitTrackID keys the long-wait track. When negated it is bigger than any
// possible CPU index, so it cannot collide with a per-CPU track.
const waitTrackID = -1_000_000

// Span names for the two states a real thread's track alternates between.
const (
	runningTask = "Running"
	waitingTask = "Waiting"
)

// Names for the synthetic tracks. The mathematical-sans glyphs set them
// apart from real process names in the viewer.
const (
	cpuProcessName    = "𝘊𝘗𝘜𝘴"
	kernelProcessName = "𝘬𝘦𝘳𝘯𝘦𝘭"
	idleThreadName    = "𝘪𝘥𝘭𝘦"
)

// Engine converts one recording's record stream into trace events. Create
// one per recording; all state lives for a single pass plus finalization.
type Engine struct {
	waitThresholdMS float64
	isKernel        func(pid int64) bool
	log             *zap.Logger

	pids   *pidmap.Mapper
	events *eventbuf.List
	spans  *spans.Tracker
	stats  *schedstats.Accumulator

	// Wait bookkeeping: when each thread started waiting, and which
	// threads are currently marked waiting per CPU (for wakeup
	// coalescing).
	waitingSince map[int64]int64
	waiting      map[int64]map[int64]struct{}
}

// New creates an Engine. waitThresholdMS is the minimum waiting time, in
// milliseconds, that lands a thread on the synthetic long-wait track.
// isKernel classifies pids as kernel threads; it must treat unknown pids
// as user threads.
func New(waitThresholdMS float64, isKernel func(pid int64) bool, log *zap.Logger) *Engine {
	pids := pidmap.New()
	events := eventbuf.New(pids)
	return &Engine{
		waitThresholdMS: waitThresholdMS,
		isKernel:        isKernel,
		log:             log,
		pids:            pids,
		events:          events,
		spans:           spans.New(events),
		stats:           schedstats.New(),
		waitingSince:    make(map[int64]int64),
		waiting:         make(map[int64]map[int64]struct{}),
	}
}

// HandleRecord dispatches one input record.
func (e *Engine) HandleRecord(rec perfparse.Record) {
	switch r := rec.(type) {
	case *perfparse.SchedRecord:
		switch r.Type {
		case "sched_switch":
			e.schedSwitch(r)
		case "sched_wakeup":
			e.schedWakeup(r)
		case "sched_stat_runtime":
			e.statRuntime(r)
		}
	case *perfparse.CommRecord:
		e.events.Append(traceevent.ThreadName(r.PID, r.TID, r.Name))
		if r.PID == r.TID {
			e.events.Append(traceevent.ProcessName(r.PID, r.Name))
		}
	case *perfparse.ForkRecord:
		e.fork(r)
	case *perfparse.ExitRecord:
		args := traceevent.Args{"pid": r.PID, "tid": r.TID, "cpu": r.CPU}
		e.events.Append(traceevent.Instant("thread_exit", r.OPID, r.OTID, r.TS, args))
	}
}

// schedWakeup opens a Waiting span for the woken thread. Kernel threads
// (rcuop especially, sometimes ktimersoftd) can be woken more than once
// before they get scheduled; those wakeups coalesce into the first.
func (e *Engine) schedWakeup(r *perfparse.SchedRecord) {
	ipid, ok := e.fieldInt(r, "pid")
	if !ok {
		return
	}
	if _, waiting := e.waiting[r.CPU][ipid]; !waiting {
		prio, ok := e.fieldInt(r, "prio")
		if !ok {
			return
		}
		if e.waiting[r.CPU] == nil {
			e.waiting[r.CPU] = make(map[int64]struct{})
		}
		e.waiting[r.CPU][ipid] = struct{}{}
		e.spans.Add(ipid, traceevent.Begin(waitingTask, r.TS, traceevent.Args{"prio": prio}))
		e.waitingSince[ipid] = r.TS
	}
	e.recordName(ipid, r.Fields["comm"])
}

// schedSwitch is the central transition: the outgoing thread stops running,
// the incoming one stops waiting and starts running, and both transitions
// are mirrored onto the CPU's virtual track.
func (e *Engine) schedSwitch(r *perfparse.SchedRecord) {
	prevPid, ok := e.fieldInt(r, "prev_pid")
	if !ok {
		return
	}
	nextPid, ok := e.fieldInt(r, "next_pid")
	if !ok {
		return
	}
	nextPrio, ok := e.fieldInt(r, "next_prio")
	if !ok {
		return
	}

	// Metadata for the run interval that just ended, with the decoded
	// reason the outgoing thread was de-scheduled.
	args := e.stats.ThreadJustEnded(prevPid, nextPid, r.CPU, r.TS)
	args["end_state"] = expandState(r.Fields["prev_state"])

	// End the outgoing thread's running span.
	e.spans.Add(prevPid, traceevent.End(runningTask, r.TS, args))

	// End the incoming thread's waiting span and start its running span.
	e.spans.Add(nextPid, traceevent.End(waitingTask, r.TS, nil))
	delete(e.waiting[r.CPU], nextPid)
	e.spans.Add(nextPid, traceevent.Begin(runningTask, r.TS, traceevent.Args{"prio": nextPrio}))

	// Mirror both transitions onto the per-CPU virtual track, where spans
	// are named by the inner pid (renamed to comm at finalization). The
	// idle thread is not shown there.
	if prevPid != 0 {
		e.spans.Add(-r.CPU, traceevent.End(strconv.FormatInt(prevPid, 10), r.TS, args))
	}
	if nextPid != 0 {
		e.spans.Add(-r.CPU, traceevent.Begin(strconv.FormatInt(nextPid, 10), r.TS, nil))
	}

	// A thread that waited past the threshold also gets a span on the
	// long-wait track, covering the full wait.
	if since, ok := e.waitingSince[nextPid]; ok {
		delete(e.waitingSince, nextPid)
		if float64(r.TS-since)/1e6 >= e.waitThresholdMS {
			name := strconv.FormatInt(nextPid, 10)
			e.spans.Add(waitTrackID, traceevent.Begin(name, since, nil))
			e.spans.Add(waitTrackID, traceevent.End(name, r.TS, nil))
		}
	}

	// The record's outer pid/tid describe the thread that was running, so
	// they are usable as a fallback mapping for the outgoing thread. Only
	// a fallback: the confirmed evidence comes from stat_runtime records,
	// which kernel threads never produce.
	if prevPid != 0 && !e.isKernel(prevPid) {
		e.pids.Backup(prevPid, r.OPID, r.OTID)
	}
	e.recordName(prevPid, r.Fields["prev_comm"])
	e.recordName(nextPid, r.Fields["next_comm"])
}

// statRuntime records a CFS runtime sample. The record also pairs the inner
// pid with the outer pid/tid of the running thread, which is the best
// identity evidence available, so the mapping is resolved here.
func (e *Engine) statRuntime(r *perfparse.SchedRecord) {
	ipid, ok := e.fieldInt(r, "pid")
	if !ok {
		return
	}
	runtime, ok := e.fieldInt(r, "runtime")
	if !ok {
		return
	}
	vruntime, ok := e.fieldInt(r, "vruntime")
	if !ok {
		return
	}
	e.events.ResolveMapping(ipid, r.OPID, r.OTID)
	e.stats.Save(r.CPU, r.TS, ipid, runtime, vruntime)
}

func (e *Engine) fork(r *perfparse.ForkRecord) {
	var name string
	args := traceevent.Args{"pid": r.PID, "tid": r.TID, "parent tid": r.PTID, "cpu": r.CPU}
	if r.PID == r.PPID {
		name = "thread_spawn"
	} else {
		name = "process fork"
		args["parent pid"] = r.PPID
	}
	e.events.Append(traceevent.Instant(name, r.OPID, r.OTID, r.TS, args))
}

// Finalize runs the post-stream passes and returns the completed event
// sequence. Call exactly once, after the last record.
func (e *Engine) Finalize() []*traceevent.Event {
	// Threads with a backup mapping but no confirmed one never produced a
	// CFS runtime sample; the absence of samples is itself the signal
	// that they are round-robin scheduled.
	rrInferred := make(map[int64]bool)
	for _, b := range e.pids.DrainBackups() {
		e.events.ResolveMapping(b.Inner, b.Outer.PID, b.Outer.TID)
		rrInferred[b.Inner] = true
	}

	e.tidyThreadNames(rrInferred)
	e.addKernelAndCPUTracks()
	e.addSortIndexes()

	return e.events.Events()
}

// tidyThreadNames appends the inner pid (and a round-robin marker where
// inferred) to every thread name whose identity resolved.
func (e *Engine) tidyThreadNames(rrInferred map[int64]bool) {
	e.events.VisitThreadNames(func(ev *traceevent.Event) {
		if ev.PID == nil || ev.TID == nil || ev.Args == nil {
			return
		}
		inner, ok := e.pids.LookupInner(*ev.PID, *ev.TID)
		if !ok {
			return
		}
		name, _ := ev.Args["name"].(string)
		if rrInferred[inner] {
			name += " [𝗥𝗥]"
		}
		ev.Args["name"] = fmt.Sprintf("%s #%d", name, inner)
	})
}

// addKernelAndCPUTracks groups threads with no metadata of their own into a
// kernel pseudo-process, and the per-CPU and long-wait tracks into a CPUs
// one.
//
// The kernel grouping is deliberately vague: alongside genuine kernel
// threads it catches scheduling activity from outside the namespace (the
// container runtime itself, for instance), which is indistinguishable from
// inside the recording.
func (e *Engine) addKernelAndCPUTracks() {
	cpid := e.pids.AllocPseudoPID()
	e.events.Append(traceevent.ProcessName(cpid, cpuProcessName))
	e.events.Append(traceevent.ProcessLabel(cpid, "(Virtual process representing CPU usage)"))
	kpid := e.pids.AllocPseudoPID()
	e.events.Append(traceevent.ProcessName(kpid, kernelProcessName))
	e.events.Append(traceevent.ProcessLabel(kpid, "(Virtual process for kernel and unknown threads)"))

	// Relocate events for kernel threads that did resolve an identity.
	// Most kernel threads never do (no COMM record explains them, so
	// their events sit in the pending buffer, handled below); this mops
	// up the rest using the process-table classifier.
	kernelPids := make(map[int64]bool)
	for _, pid := range e.pids.SeenPIDs() {
		if e.isKernel(pid) {
			kernelPids[pid] = true
		}
	}
	e.events.VisitAll(func(ev *traceevent.Event) {
		if ev.PID != nil && ev.TID != nil && *ev.PID == *ev.TID && kernelPids[*ev.PID] {
			pid := kpid
			ev.PID = &pid
		}
	})

	// Everything still pending never had its inner id mapped: the per-CPU
	// and long-wait tracks (negative keys) plus kernel/unknown threads.
	for _, q := range e.events.DrainPending() {
		if q.Track < 0 {
			e.relocateCPUTrack(cpid, q)
		} else {
			e.relocateKernelThread(kpid, q)
		}
	}
}

func (e *Engine) relocateCPUTrack(cpid int64, q eventbuf.PendingQueue) {
	cpu := -q.Track
	var name string
	if q.Track == waitTrackID {
		name = fmt.Sprintf("𝘞𝘢𝘪𝘵𝘪𝘯𝘨 ≥ %.1f 𝘮𝘴", float64(int64(e.waitThresholdMS)))
	} else {
		name = fmt.Sprintf("𝘊𝘗𝘜 %d", cpu)
	}
	e.events.Append(traceevent.ThreadName(cpid, cpu, name))
	for _, ev := range q.Events {
		pid, tid := cpid, cpu
		ev.PID, ev.TID = &pid, &tid
		// Span names on these tracks are stringified inner pids; show
		// the program name instead.
		inner, err := strconv.ParseInt(ev.Name, 10, 64)
		if err == nil {
			if comm, ok := e.pids.Name(inner); ok {
				ev.Name = fmt.Sprintf("%s #%d", comm, inner)
			} else {
				ev.Name = fmt.Sprintf("#%d", inner)
			}
		}
		e.events.AppendRaw(ev)
	}
}

func (e *Engine) relocateKernelThread(kpid int64, q eventbuf.PendingQueue) {
	tid := q.Track
	var name string
	if tid == 0 {
		name = idleThreadName
		// Keep the idle thread at the top of the kernel process.
		e.events.Append(traceevent.ThreadSortIndex(kpid, tid, -1))
	} else if comm, ok := e.pids.Name(tid); ok {
		name = fmt.Sprintf("%s #%d", comm, tid)
	} else {
		name = fmt.Sprintf("#%d", tid)
	}
	e.events.Append(traceevent.ThreadName(kpid, tid, name))
	for _, ev := range q.Events {
		pid, t := kpid, tid
		ev.PID, ev.TID = &pid, &t
		if tid == 0 {
			ev.Name = idleThreadName
		}
		e.events.AppendRaw(ev)
	}
}

// addSortIndexes emits one process_sort_index per outer pid, ordering
// processes by total accumulated runtime, busiest first, with the pseudo
// processes pinned above all of them.
func (e *Engine) addSortIndexes() {
	runtimeByPid := make(map[int64]int64)
	var order []int64
	for _, total := range e.stats.RuntimeTotals() {
		pid := total.Inner
		if out, ok := e.pids.LookupOuter(total.Inner); ok {
			pid = out.PID
		}
		if _, seen := runtimeByPid[pid]; !seen {
			order = append(order, pid)
		}
		runtimeByPid[pid] += total.Runtime
	}

	var maxRuntime int64
	for _, pid := range order {
		runtime := runtimeByPid[pid]
		e.events.Append(traceevent.ProcessSortIndex(pid, -runtime))
		if runtime > maxRuntime {
			maxRuntime = runtime
		}
	}
	maxRuntime++
	for _, pid := range e.pids.PseudoPIDs() {
		e.events.Append(traceevent.ProcessSortIndex(pid, -maxRuntime))
	}
}

func (e *Engine) recordName(inner int64, comm string) {
	if comm != "" {
		e.pids.RecordName(inner, comm)
	}
}

func (e *Engine) fieldInt(r *perfparse.SchedRecord, key string) (int64, bool) {
	v, ok := r.Fields[key]
	if !ok {
		e.log.Warn("sched record missing field",
			zap.String("type", r.Type), zap.String("field", key))
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		e.log.Warn("sched record field not an integer",
			zap.String("type", r.Type), zap.String("field", key), zap.String("value", v))
		return 0, false
	}
	return n, true
}
