// Package recfilter evaluates a user-supplied predicate expression against
// each input record before it reaches the engine.
//
// Expressions use the expr language and see one record at a time:
//
//	type == "sched_switch" && cpu == 2
//	comm startsWith "kworker"
//
// The expression is compiled once and must evaluate to a boolean.
package recfilter

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"schedtrace/internal/perfparse"
)

// Filter is a compiled per-record predicate.
type Filter struct {
	program *vm.Program
}

// recordEnv is the typed environment an expression is checked against.
type recordEnv struct {
	Type string `expr:"type"`
	PID  int64  `expr:"pid"`
	TID  int64  `expr:"tid"`
	CPU  int64  `expr:"cpu"`
	TS   int64  `expr:"ts"`
	Comm string `expr:"comm"`
}

// Compile builds a Filter from source. An empty source yields a nil Filter,
// which matches everything.
func Compile(source string) (*Filter, error) {
	if source == "" {
		return nil, nil
	}
	program, err := expr.Compile(source, expr.Env(recordEnv{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compiling record filter %q: %w", source, err)
	}
	return &Filter{program: program}, nil
}

// Match reports whether the record passes the predicate. A nil Filter
// matches everything; evaluation errors exclude the record.
func (f *Filter) Match(rec perfparse.Record) bool {
	if f == nil {
		return true
	}
	out, err := expr.Run(f.program, envFor(rec))
	if err != nil {
		return false
	}
	pass, ok := out.(bool)
	return ok && pass
}

func envFor(rec perfparse.Record) recordEnv {
	switch r := rec.(type) {
	case *perfparse.SchedRecord:
		return recordEnv{
			Type: r.Type,
			PID:  r.OPID, TID: r.OTID,
			CPU: r.CPU, TS: r.TS,
			Comm: r.Fields["comm"],
		}
	case *perfparse.CommRecord:
		return recordEnv{Type: "comm", PID: r.PID, TID: r.TID, Comm: r.Name}
	case *perfparse.ForkRecord:
		return recordEnv{Type: "fork", PID: r.OPID, TID: r.OTID, CPU: r.CPU, TS: r.TS}
	case *perfparse.ExitRecord:
		return recordEnv{Type: "exit", PID: r.OPID, TID: r.OTID, CPU: r.CPU, TS: r.TS}
	default:
		return recordEnv{}
	}
}
