// Package eventstream drives the record pipeline: it reads a perf script
// dump line by line, parses each line, applies the time window and the
// optional record filter, and dispatches what remains to a handler.
package eventstream

import (
	"bufio"
	"fmt"
	"io"

	"go.uber.org/zap"

	"schedtrace/internal/perfparse"
	"schedtrace/internal/recfilter"
	"schedtrace/internal/timewindow"
)

// Handler consumes parsed records in stream order.
type Handler interface {
	HandleRecord(rec perfparse.Record)
}

// Stream reads records from a dump and dispatches them to a handler.
type Stream struct {
	parser  *perfparse.Parser
	window  *timewindow.Window
	filter  *recfilter.Filter
	handler Handler
	log     *zap.Logger
}

// New creates a Stream. filter may be nil to dispatch every record.
func New(handler Handler, window *timewindow.Window, filter *recfilter.Filter, log *zap.Logger) *Stream {
	return &Stream{
		parser:  perfparse.NewParser(log),
		window:  window,
		filter:  filter,
		handler: handler,
		log:     log,
	}
}

// Run consumes r to the end, dispatching records as it goes. The time
// window applies to scheduler records only: task lifecycle records are
// cheap and their state matters regardless of when they happen.
func (s *Stream) Run(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var lines, dispatched int
	for scanner.Scan() {
		lines++
		rec := s.parser.Parse(scanner.Text())
		if rec == nil {
			continue
		}
		if sr, ok := rec.(*perfparse.SchedRecord); ok && !s.window.Include(sr.TS) {
			continue
		}
		if !s.filter.Match(rec) {
			continue
		}
		s.handler.HandleRecord(rec)
		dispatched++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading record stream: %w", err)
	}

	s.log.Info("record stream complete",
		zap.Int("lines", lines), zap.Int("dispatched", dispatched))
	return nil
}
