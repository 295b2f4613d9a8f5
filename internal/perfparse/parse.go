package perfparse

import (
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Regexp for a sched record, consuming the entire line. eg:
//
//	1234/1234  [002] 3376096.441959680:  sched:sched_waking: comm=kworker/2:1 ...
//	^^^^ ^^^^   ^^^  ^^^^^^^ ^^^^^^^^^         ^^^^^^^^^^^^ ^^^^^^^^^^^^^^^^^^^^^
//	opid otid   cpu  ts secs  ts nsecs             type          other stuff
var schedRE = regexp.MustCompile(
	` *([\d-]+)/([\d-]+) +\[0*(\d+)\] +(\d+)\.(\d+): +sched:(\w+): (.*)$`)

// Base regexp for any PERF_RECORD_*, consuming the entire line. eg:
//
//	6802/6802  [004] 926991.760617747: PERF_RECORD_COMM exec: ifconfig:6802/6802
//	^^^^ ^^^^   ^^^  ^^^^^^ ^^^^^^^^^              ^^^^ ^^^^^^^^^^^^^^^^^^^^^^^^
//	opid otid   cpu  ts sec  ts nsec               type         other stuff
var perfRecordRE = regexp.MustCompile(
	` *([\d-]+)/([\d-]+) +\[0*(\d+)\] +(\d+)\.(\d+): PERF_RECORD_([A-Z]+)(.*)$`)

// Unusual layout for sched:sched_switch emitted by at least one perf build:
//
//	sched:sched_switch: dev 0 ts:6450 [120] S ==> swapper/3:0 [120]
//	                    ^^^^^^^^ ^^^^  ^^^  ^     ^^^^^^^^^ ^  ^^^
//	                    prev_comm pid  prio state next_comm pid prio
//
// The state can be a combination like "D|W".
var weirdSchedSwitchRE = regexp.MustCompile(
	`(.*?):(\d+) \[(\d+)\] (\S+) ==> (.*):(\d+) \[(\d+)\]$`)

// Unusual layout for sched:sched_wakeup:
//
//	sched:sched_wakeup: db_writer:3736 [120] success=1 CPU:003
//	                    ^^^^^^^^^ ^^^^  ^^^                ^^^
//	                     comm     pid   prio               cpu
var weirdSchedWakeupRE = regexp.MustCompile(`(.*?):(\d+) \[(\d+)\] .*? CPU:(\d+)$`)

// The specifics of a PERF_RECORD_COMM, eg:
//
//	exec: ifconfig:6802/6802
//	      ^^^^^^^^ ^^^^ ^^^^
//	          name  pid  tid
var commRE = regexp.MustCompile(`(?: exec)?: (.*):(\d+)/(\d+)$`)

// The specifics of a PERF_RECORD_FORK or PERF_RECORD_EXIT, eg:
//
//	(6780:6781):(6780:6780)
//	 ^^^^ ^^^^   ^^^^ ^^^^
//	 pid  tid    ppid ptid
var forkExitRE = regexp.MustCompile(`\((\d+):(\d+)\):\((\d+):(\d+)\)`)

// Parser turns perf script lines into Records.
type Parser struct {
	log *zap.Logger
}

// NewParser creates a Parser logging dropped lines through log.
func NewParser(log *zap.Logger) *Parser {
	return &Parser{log: log}
}

// Parse converts one line into a typed record. A nil result means the line
// carried nothing for the engine: an unknown record (logged) or a record
// variant that is deliberately skipped.
func (p *Parser) Parse(line string) Record {
	// Most common case first: a sched record.
	if m := schedRE.FindStringSubmatch(line); m != nil {
		return p.parseSched(m)
	}

	m := perfRecordRE.FindStringSubmatch(line)
	if m == nil {
		p.log.Warn("ignoring unknown record", zap.String("line", line))
		return nil
	}

	opid, otid := atoi(m[1]), atoi(m[2])
	cpu := atoi(m[3])
	ts := timestamp(m[4], m[5])
	rest := m[7]
	switch m[6] {
	case "COMM":
		return p.parseComm(rest)
	case "FORK":
		// Timestamp-zero fork records duplicate what the COMM records
		// already provide.
		if ts > 0 {
			return p.parseFork(rest, opid, otid, cpu, ts)
		}
		return nil
	case "EXIT":
		return p.parseExit(rest, opid, otid, cpu, ts)
	default:
		p.log.Warn("ignoring unknown PERF_RECORD entry", zap.String("line", line))
		return nil
	}
}

func (p *Parser) parseSched(m []string) Record {
	recType := m[6]
	rawArgs := m[7]

	// The args are mostly "key1=val1 key2=val2 [ns]"; tokens without '='
	// (like the "==>" separator or "[ns]" unit markers) are skipped.
	fields := make(map[string]string)
	for _, token := range strings.Fields(rawArgs) {
		if k, v, ok := strings.Cut(token, "="); ok && k != "" {
			fields[k] = v
		}
	}

	// Positional fallbacks for the old perf output. Slower, but this only
	// happens with one weird perf binary.
	if recType == "sched_switch" {
		if _, ok := fields["prev_comm"]; !ok {
			if w := weirdSchedSwitchRE.FindStringSubmatch(rawArgs); w != nil {
				fields = map[string]string{
					"prev_comm":  w[1],
					"prev_pid":   w[2],
					"prev_prio":  w[3],
					"prev_state": w[4],
					"next_comm":  w[5],
					"next_pid":   w[6],
					"next_prio":  w[7],
				}
			}
		}
	} else if recType == "sched_wakeup" {
		if _, ok := fields["pid"]; !ok {
			if w := weirdSchedWakeupRE.FindStringSubmatch(rawArgs); w != nil {
				fields = map[string]string{
					"comm":       w[1],
					"pid":        w[2],
					"prio":       w[3],
					"target_cpu": w[4],
				}
			}
		}
	}

	return &SchedRecord{
		Type:   recType,
		OPID:   atoi(m[1]),
		OTID:   atoi(m[2]),
		CPU:    atoi(m[3]),
		TS:     timestamp(m[4], m[5]),
		Fields: fields,
	}
}

func (p *Parser) parseComm(rest string) Record {
	m := commRE.FindStringSubmatch(rest)
	if m == nil {
		p.log.Warn("PERF_RECORD_COMM failed to match", zap.String("rest", rest))
		return nil
	}
	return &CommRecord{Name: m[1], PID: atoi(m[2]), TID: atoi(m[3])}
}

func (p *Parser) parseFork(rest string, opid, otid, cpu, ts int64) Record {
	m := forkExitRE.FindStringSubmatch(rest)
	if m == nil {
		p.log.Warn("PERF_RECORD_FORK failed to match", zap.String("rest", rest))
		return nil
	}
	return &ForkRecord{
		PID: atoi(m[1]), TID: atoi(m[2]),
		PPID: atoi(m[3]), PTID: atoi(m[4]),
		OPID: opid, OTID: otid, CPU: cpu, TS: ts,
	}
}

func (p *Parser) parseExit(rest string, opid, otid, cpu, ts int64) Record {
	m := forkExitRE.FindStringSubmatch(rest)
	if m == nil {
		p.log.Warn("PERF_RECORD_EXIT failed to match", zap.String("rest", rest))
		return nil
	}
	return &ExitRecord{
		PID: atoi(m[1]), TID: atoi(m[2]),
		OPID: opid, OTID: otid, CPU: cpu, TS: ts,
	}
}

func timestamp(secs, nsecs string) int64 {
	return atoi(secs)*1_000_000_000 + atoi(nsecs)
}

// atoi parses submatches already constrained to digits by the regexps.
func atoi(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}
