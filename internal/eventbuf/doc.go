// Package eventbuf owns the output event sequence being built.
//
// Two concerns live here. First, timestamp unit conversion: records carry
// nanosecond timestamps but the trace viewer wants microseconds, and the
// conversion must happen exactly once per event, at the moment the event is
// committed. Second, deferred identity resolution: a duration event may
// reference an inner pid whose outer (pid, tid) pair is not yet known. Such
// events are parked in a per-inner-id queue and replayed, in arrival order,
// the instant the mapping is established. Queues still pending at end of
// stream are handed to finalization, which relocates them onto synthetic
// tracks.
package eventbuf
