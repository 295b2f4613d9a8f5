// Package timewindow trims a recording to the requested interval.
//
// The window is anchored on the first positive timestamp observed, so the
// skip offset is relative to the start of real data rather than absolute
// time. Records are judged one at a time before they reach the engine.
package timewindow

import "math"

const nanosPerSecond = 1e9

// Window decides whether a timestamp falls in the configured interval.
type Window struct {
	delay   int64
	end     float64
	startTS int64
	anchor  bool
}

// New creates a Window that skips skipSeconds of data from the first
// positive timestamp, then admits durationSeconds of data. A duration of
// zero means unbounded.
func New(skipSeconds, durationSeconds float64) *Window {
	w := &Window{
		delay: int64(skipSeconds * nanosPerSecond),
		end:   math.Inf(1),
	}
	if durationSeconds > 0 {
		w.end = durationSeconds*nanosPerSecond + float64(w.delay)
	}
	return w
}

// Include reports whether the record with nanosecond timestamp ts should be
// processed. The first positive timestamp anchors the window and is always
// included.
func (w *Window) Include(ts int64) bool {
	if !w.anchor {
		if ts > 0 {
			w.startTS = ts
			w.anchor = true
		}
		return true
	}
	offset := ts - w.startTS
	return offset >= w.delay && float64(offset) <= w.end
}
