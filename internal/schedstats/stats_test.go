package schedstats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schedtrace/internal/traceevent"
)

func TestExactRuntimeWhenSampleCoversInterval(t *testing.T) {
	a := New()

	// Thread 5 starts running on cpu 2 at t=100.
	a.ThreadJustEnded(0, 5, 2, 100)
	// A sample for thread 5 lands inside its run interval.
	a.Save(2, 150, 5, 40, 999)

	args := a.ThreadJustEnded(5, 7, 2, 200)

	assert.Equal(t, traceevent.Args{ArgRuntime: int64(40), ArgVruntime: int64(999)}, args)
	assert.Equal(t, []RuntimeTotal{{Inner: 5, Runtime: 40}}, a.RuntimeTotals())
}

func TestApproximateWhenSampleIsStale(t *testing.T) {
	a := New()

	a.Save(2, 50, 5, 40, 999) // before thread 5's run starts
	a.ThreadJustEnded(0, 5, 2, 100)

	args := a.ThreadJustEnded(5, 7, 2, 180)

	assert.Equal(t, traceevent.Args{ArgApproxRuntime: int64(80)}, args)
	assert.Equal(t, []RuntimeTotal{{Inner: 5, Runtime: 80}}, a.RuntimeTotals())
}

func TestApproximateWhenSampleIsForOtherThread(t *testing.T) {
	a := New()

	a.ThreadJustEnded(0, 5, 2, 100)
	a.Save(2, 150, 6, 40, 999) // sample belongs to thread 6

	args := a.ThreadJustEnded(5, 7, 2, 175)

	assert.Equal(t, traceevent.Args{ArgApproxRuntime: int64(75)}, args)
}

func TestNoRunStartYieldsNoArgs(t *testing.T) {
	a := New()

	// Thread 5 was never seen starting; nothing can be attributed.
	args := a.ThreadJustEnded(5, 7, 2, 200)
	assert.Empty(t, args)
	assert.Empty(t, a.RuntimeTotals())

	// But thread 7's run start was still recorded.
	args = a.ThreadJustEnded(7, 9, 2, 260)
	assert.Equal(t, traceevent.Args{ArgApproxRuntime: int64(60)}, args)
}

func TestMostRecentSampleWins(t *testing.T) {
	a := New()

	a.ThreadJustEnded(0, 5, 2, 100)
	a.Save(2, 120, 5, 10, 111)
	a.Save(2, 160, 5, 30, 222)

	args := a.ThreadJustEnded(5, 7, 2, 200)
	assert.Equal(t, int64(30), args[ArgRuntime])
	assert.Equal(t, int64(222), args[ArgVruntime])
}

func TestTotalsAccumulateAcrossIntervals(t *testing.T) {
	a := New()

	a.ThreadJustEnded(0, 5, 2, 100)
	a.Save(2, 150, 5, 40, 1)
	a.ThreadJustEnded(5, 7, 2, 200) // exact: +40

	a.ThreadJustEnded(7, 5, 2, 300) // thread 5 runs again
	a.ThreadJustEnded(5, 7, 2, 350) // stale sample: approx +50

	totals := a.RuntimeTotals()
	require.Len(t, totals, 2)
	assert.Equal(t, RuntimeTotal{Inner: 5, Runtime: 90}, totals[0])
	// Thread 7's first interval (200..300) had a stale sample too.
	assert.Equal(t, RuntimeTotal{Inner: 7, Runtime: 100}, totals[1])
}

func TestSamplesAreCPULocal(t *testing.T) {
	a := New()

	a.ThreadJustEnded(0, 5, 2, 100)
	a.Save(3, 150, 5, 40, 1) // sample on a different cpu

	args := a.ThreadJustEnded(5, 7, 2, 190)
	assert.Equal(t, traceevent.Args{ArgApproxRuntime: int64(90)}, args)
}
