// Package procsnap parses the process-table snapshot ("perf-mdata.txt")
// that the collect script ships alongside the perf data.
//
// The file holds "# key: value" metadata about the recording plus raw
// /proc/<pid>/stat lines, captured once before and once after the
// recording. Later lines for a pid replace earlier ones, so post-recording
// state wins when both snapshots cover a process. The per-process stat
// fields are documented in proc(5); the one the engine depends on is the
// kernel flags word, whose PF_KTHREAD bit classifies kernel threads.
package procsnap
