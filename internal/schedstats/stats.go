// Package schedstats reconciles per-CPU runtime statistics with scheduler
// switch events.
//
// CFS emits sched_stat_runtime samples that carry precise runtime and
// vruntime for the thread leaving a CPU. Other scheduling classes (FIFO,
// round-robin) produce no such samples, so when the last sample for a CPU
// does not cover the interval that just ended, the accumulator falls back
// to wall-clock elapsed time. The per-thread cumulative runtime collected
// either way is used only for output ordering.
package schedstats

import (
	"sort"

	"schedtrace/internal/traceevent"
)

// Argument keys attached to the closing Running event.
const (
	ArgRuntime       = "CFS runtime (ns)"
	ArgVruntime      = "CFS vruntime (ns)"
	ArgApproxRuntime = "Non-CFS runtime (ns)"
)

type sample struct {
	ts       int64
	inner    int64
	runtime  int64
	vruntime int64
}

// RuntimeTotal is one thread's accumulated runtime.
type RuntimeTotal struct {
	Inner   int64
	Runtime int64
}

// Accumulator caches the most recent runtime sample per CPU and totals
// runtime per thread.
type Accumulator struct {
	cpuSamples map[int64]sample
	totals     map[int64]int64
	runStart   map[int64]int64
}

// New creates an empty Accumulator.
func New() *Accumulator {
	return &Accumulator{
		cpuSamples: make(map[int64]sample),
		totals:     make(map[int64]int64),
		runStart:   make(map[int64]int64),
	}
}

// Save records a runtime statistic sample for a CPU. The most recent sample
// unconditionally replaces the previous one.
func (a *Accumulator) Save(cpu, ts, inner, runtime, vruntime int64) {
	a.cpuSamples[cpu] = sample{ts: ts, inner: inner, runtime: runtime, vruntime: vruntime}
}

// ThreadJustEnded reconciles the run interval that ended at ts on cpu, when
// stopped was switched out for starting. If the CPU's last sample belongs
// to stopped and was taken at or after the interval's start, the sampled
// runtime and vruntime are returned as exact values; otherwise the elapsed
// wall-clock time stands in, tagged as non-CFS. Either value feeds the
// thread's cumulative total. ts always becomes starting's new run-start.
func (a *Accumulator) ThreadJustEnded(stopped, starting, cpu, ts int64) traceevent.Args {
	args := traceevent.Args{}
	if startedRunning, ok := a.runStart[stopped]; ok {
		s := a.cpuSamples[cpu]
		if s.inner == stopped && s.ts >= startedRunning {
			args[ArgRuntime] = s.runtime
			args[ArgVruntime] = s.vruntime
			a.totals[stopped] += s.runtime
		} else {
			approx := ts - startedRunning
			a.totals[stopped] += approx
			args[ArgApproxRuntime] = approx
		}
	}
	a.runStart[starting] = ts
	return args
}

// RuntimeTotals returns the cumulative runtime per inner pid, sorted by
// inner pid.
func (a *Accumulator) RuntimeTotals() []RuntimeTotal {
	out := make([]RuntimeTotal, 0, len(a.totals))
	for inner, runtime := range a.totals {
		out = append(out, RuntimeTotal{Inner: inner, Runtime: runtime})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Inner < out[j].Inner })
	return out
}
