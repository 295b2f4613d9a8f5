// Package perfparse parses the textual output of `perf script` into typed
// records.
//
// perf has a built-in scripting interface, but it omits records we need (in
// particular PERF_RECORD_COMM, which provides the process/thread hierarchy
// and names), so the text produced by
//
//	perf script --show-task-events --fields pid,tid,cpu,time,event,trace --ns
//
// is parsed line by line instead. Two sets of layouts are understood for
// sched_switch and sched_wakeup: the common key=value form, and an older
// positional form emitted by at least one unversioned perf binary.
// Unrecognized lines are logged and dropped; they never reach the engine.
package perfparse
