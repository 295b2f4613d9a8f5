package procsnap

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

// PF_KTHREAD marks kernel threads in the /proc/<pid>/stat flags word
// (linux/sched.h).
const PF_KTHREAD = 0x00200000

// statRE roughly splits a /proc/<pid>/stat line: pid, comm in parentheses
// (which may itself contain parentheses and spaces), single-letter state,
// then integer fields.
var statRE = regexp.MustCompile(`^(\d+) \((.*)\) (\w) ([\d -]+)$`)

// Indexes into ProcStat.Fields for the stat columns after state, in
// proc(5) order starting at ppid.
const (
	fieldFlags    = 5
	fieldPriority = 14
	fieldPolicy   = 37
)

// ProcStat is one parsed /proc/<pid>/stat line. Fields holds the integer
// columns following the state, in file order; named accessors cover the
// columns the converter actually reads.
type ProcStat struct {
	PID    int64
	Comm   string
	State  string
	Fields []int64
}

// Flags returns the kernel flags word, or 0 when the line was truncated.
func (p ProcStat) Flags() int64 { return p.field(fieldFlags) }

// Priority returns the scheduling priority.
func (p ProcStat) Priority() int64 { return p.field(fieldPriority) }

// Policy returns the scheduling policy number.
func (p ProcStat) Policy() int64 { return p.field(fieldPolicy) }

func (p ProcStat) field(i int) int64 {
	if i >= len(p.Fields) {
		return 0
	}
	return p.Fields[i]
}

// Snapshot is the parsed process-table snapshot.
type Snapshot struct {
	// Meta holds the "# key: value" pairs describing the recording.
	Meta map[string]string
	// Procs maps pid to its most recent stat line.
	Procs map[int64]ProcStat
}

// Parse reads a snapshot stream.
func Parse(r io.Reader) (*Snapshot, error) {
	snap := &Snapshot{
		Meta:  make(map[string]string),
		Procs: make(map[int64]ProcStat),
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "## "):
			// Section comment ("## before" / "## after").
		case strings.HasPrefix(line, "# "):
			if key, val, ok := strings.Cut(line[2:], ":"); ok {
				snap.Meta[key] = strings.TrimSpace(val)
			}
		case strings.TrimSpace(line) == "":
		default:
			stat, err := parseStatLine(line)
			if err != nil {
				return nil, err
			}
			snap.Procs[stat.PID] = stat
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading process snapshot: %w", err)
	}
	return snap, nil
}

// IsKernel reports whether pid belongs to a kernel thread. A pid absent
// from the snapshot is not a kernel thread.
func (s *Snapshot) IsKernel(pid int64) bool {
	proc, ok := s.Procs[pid]
	return ok && proc.Flags()&PF_KTHREAD != 0
}

func parseStatLine(line string) (ProcStat, error) {
	m := statRE.FindStringSubmatch(line)
	if m == nil {
		return ProcStat{}, fmt.Errorf("malformed stat line: %q", line)
	}
	pid, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return ProcStat{}, fmt.Errorf("malformed stat pid: %w", err)
	}
	rawFields := strings.Fields(m[4])
	fields := make([]int64, 0, len(rawFields))
	for _, f := range rawFields {
		n, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			// Address-like columns (rsslim, the sig* masks) can hold the
			// full unsigned 64-bit range.
			u, uerr := strconv.ParseUint(f, 10, 64)
			if uerr != nil {
				return ProcStat{}, fmt.Errorf("malformed stat field %q in pid %d: %w", f, pid, err)
			}
			n = int64(u)
		}
		fields = append(fields, n)
	}
	return ProcStat{PID: pid, Comm: m[2], State: m[3], Fields: fields}, nil
}
