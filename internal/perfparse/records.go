package perfparse

// Record is the closed set of typed records produced by the parser.
type Record interface {
	isRecord()
}

// SchedRecord is a scheduler tracepoint record (sched_switch, sched_wakeup,
// sched_stat_runtime, ...). OPID and OTID are the pid/tid as seen from
// outside the namespace; the Fields map holds the tracepoint's own
// key=value payload, where pids are in the kernel's (inner) namespace.
type SchedRecord struct {
	Type   string
	OPID   int64
	OTID   int64
	CPU    int64
	TS     int64 // nanoseconds
	Fields map[string]string
}

// CommRecord names a process or thread, covering both threads alive at the
// start of the recording and exec events during it.
type CommRecord struct {
	Name string
	PID  int64
	TID  int64
}

// ForkRecord is a process or thread creation during the recording.
type ForkRecord struct {
	PID  int64
	TID  int64
	PPID int64
	PTID int64
	OPID int64
	OTID int64
	CPU  int64
	TS   int64
}

// ExitRecord is a process or thread ending during the recording.
type ExitRecord struct {
	PID  int64
	TID  int64
	OPID int64
	OTID int64
	CPU  int64
	TS   int64
}

func (*SchedRecord) isRecord() {}
func (*CommRecord) isRecord()  {}
func (*ForkRecord) isRecord()  {}
func (*ExitRecord) isRecord()  {}
