// Package traceevent models the Trace Event Format records emitted by the
// converter.
//
// The format is described at
// https://docs.google.com/document/d/1CvAClvFfyA5R-PhYUmn5OOQtYMH4h6I0nSsKchNAySU/preview
//
// Every record is a single Event struct with optional fields; the phase
// discriminates begin/end/instant/metadata. Optional fields that were never
// set are omitted from the JSON output entirely, never emitted as null.
// Timestamps are microseconds (the viewer's unit); the engine stores
// nanosecond timestamps in events at creation time and converts exactly once
// when an event is committed to the output sequence.
package traceevent
