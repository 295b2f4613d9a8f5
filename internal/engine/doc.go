// Package engine transforms typed perf sched records into trace events.
//
// A single pass over the record stream drives four pieces of state:
//
//	┌───────────────────────────────────────┐
//	│        typed records (perfparse)      │
//	└───────────────┬───────────────────────┘
//	                │ HandleRecord
//	                ▼
//	┌───────────────────────────────────────┐
//	│   engine                              │  ← per-type dispatch
//	└───────┬───────────────────────────────┘
//	        │
//	        ├──→ wakeup/switch ──→ spans.Tracker
//	        │                      - pairs Begin/End per track
//	        │                      - mirrors onto per-CPU tracks
//	        │
//	        ├──→ stat_runtime ───→ schedstats.Accumulator
//	        │                      - per-CPU sample cache
//	        │                      - cumulative runtime totals
//	        │
//	        ├──→ identity       ──→ pidmap.Mapper via eventbuf.List
//	        │    evidence           - confirmed + backup mappings
//	        │                       - deferred-event replay
//	        │
//	        └──→ comm/fork/exit ──→ eventbuf.List directly
//
// After the stream is exhausted, Finalize runs a bounded sequence: backup
// mappings are drained (threads that never produced a CFS runtime sample
// are inferred to be round-robin scheduled), thread names are tidied,
// synthetic CPU/kernel/long-wait tracks are materialized from the pending
// buffer, and per-process sort indexes are computed from accumulated
// runtime.
package engine
