package perfparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newParser() *Parser {
	return NewParser(zap.NewNop())
}

func TestParseCommRecords(t *testing.T) {
	tests := []struct {
		line string
		want *CommRecord
	}{
		{
			line: "    0/0     [000]     0.000000000: PERF_RECORD_COMM: invmgr:1059/1097",
			want: &CommRecord{Name: "invmgr", PID: 1059, TID: 1097},
		},
		{
			line: "    0/0     [000]     0.000000000: PERF_RECORD_COMM: SysDB EDM Threa:1059/1104",
			want: &CommRecord{Name: "SysDB EDM Threa", PID: 1059, TID: 1104},
		},
		{
			line: " 6802/6802  [004] 926991.760617747: PERF_RECORD_COMM exec: ifconfig:6802/6802",
			want: &CommRecord{Name: "ifconfig", PID: 6802, TID: 6802},
		},
		{
			line: " 6802/6803  [004] 926991.760617747: PERF_RECORD_COMM exec: ifconfig:6804/6805",
			want: &CommRecord{Name: "ifconfig", PID: 6804, TID: 6805},
		},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, newParser().Parse(tt.line))
	}
}

func TestParseForkRecord(t *testing.T) {
	got := newParser().Parse(" 6784/6785  [004] 926991.719359812: PERF_RECORD_FORK(6780:6781):(6782:6783)")
	want := &ForkRecord{
		PID: 6780, TID: 6781, PPID: 6782, PTID: 6783,
		OPID: 6784, OTID: 6785, CPU: 4, TS: 926991719359812,
	}
	assert.Equal(t, want, got)
}

func TestParseForkRecord_TimestampZeroSkipped(t *testing.T) {
	got := newParser().Parse(" 6780/6780  [004]     0.000000000: PERF_RECORD_FORK(6780:6781):(6780:6780)")
	assert.Nil(t, got, "fork records at ts 0 duplicate COMM information")
}

func TestParseExitRecord(t *testing.T) {
	got := newParser().Parse(" 6782/6783  [004] 926991.722004488: PERF_RECORD_EXIT(6784:6785):(5911:5912)")
	want := &ExitRecord{
		PID: 6784, TID: 6785,
		OPID: 6782, OTID: 6783, CPU: 4, TS: 926991722004488,
	}
	assert.Equal(t, want, got)
}

func TestParseSchedRecords(t *testing.T) {
	tests := []struct {
		name string
		line string
		want *SchedRecord
	}{
		{
			name: "migrate",
			line: "1372378/1372378 [000] 3376096.592194640:               sched:sched_migrate_task: comm=kworker/u8:0 pid=1369725 prio=120 orig_cpu=0 dest_cpu=1",
			want: &SchedRecord{
				Type: "sched_migrate_task",
				OPID: 1372378, OTID: 1372378, CPU: 0, TS: 3376096592194640,
				Fields: map[string]string{
					"comm": "kworker/u8:0", "pid": "1369725", "prio": "120",
					"orig_cpu": "0", "dest_cpu": "1",
				},
			},
		},
		{
			name: "wakeup",
			line: "1372378/1372379 [004] 3376096.592207960:                     sched:sched_wakeup: comm=kworker/u8:0 pid=1369725 prio=120 target_cpu=001",
			want: &SchedRecord{
				Type: "sched_wakeup",
				OPID: 1372378, OTID: 1372379, CPU: 4, TS: 3376096592207960,
				Fields: map[string]string{
					"comm": "kworker/u8:0", "pid": "1369725", "prio": "120",
					"target_cpu": "001",
				},
			},
		},
		{
			name: "stat runtime strips unit markers",
			line: "1372378/1372379 [006] 3376096.592216000:               sched:sched_stat_runtime: comm=sshd pid=1372378 runtime=129400 [ns] vruntime=26130216 [ns]",
			want: &SchedRecord{
				Type: "sched_stat_runtime",
				OPID: 1372378, OTID: 1372379, CPU: 6, TS: 3376096592216000,
				Fields: map[string]string{
					"comm": "sshd", "pid": "1372378",
					"runtime": "129400", "vruntime": "26130216",
				},
			},
		},
		{
			name: "switch",
			line: "1372378/1372379 [000] 3376096.592218600:                     sched:sched_switch: prev_comm=sshd prev_pid=1372378 prev_prio=120 prev_state=S ==> next_comm=swapper/0 next_pid=0 next_prio=120",
			want: &SchedRecord{
				Type: "sched_switch",
				OPID: 1372378, OTID: 1372379, CPU: 0, TS: 3376096592218600,
				Fields: map[string]string{
					"prev_comm": "sshd", "prev_pid": "1372378", "prev_prio": "120",
					"prev_state": "S",
					"next_comm":  "swapper/0", "next_pid": "0", "next_prio": "120",
				},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, newParser().Parse(tt.line))
		})
	}
}

func TestParseWeirdSchedLayouts(t *testing.T) {
	switchLine := " 3736/3736  [003]   100.000000100:  sched:sched_switch: dev 0 ts:6450 [120] S ==> swapper/3:0 [120]"
	got := newParser().Parse(switchLine)
	require.IsType(t, &SchedRecord{}, got)
	sr := got.(*SchedRecord)
	assert.Equal(t, map[string]string{
		"prev_comm": "dev 0 ts", "prev_pid": "6450", "prev_prio": "120",
		"prev_state": "S",
		"next_comm":  "swapper/3", "next_pid": "0", "next_prio": "120",
	}, sr.Fields)

	wakeupLine := " 3736/3736  [003]   100.000000200:  sched:sched_wakeup: db_writer:3736 [120] success=1 CPU:003"
	got = newParser().Parse(wakeupLine)
	require.IsType(t, &SchedRecord{}, got)
	sr = got.(*SchedRecord)
	assert.Equal(t, map[string]string{
		"comm": "db_writer", "pid": "3736", "prio": "120", "target_cpu": "003",
	}, sr.Fields)
}

func TestParseUnknownLineDropped(t *testing.T) {
	assert.Nil(t, newParser().Parse("not a perf record at all"))
	assert.Nil(t, newParser().Parse(" 1/1  [000] 1.000000000: PERF_RECORD_MMAP2 whatever"))
}
