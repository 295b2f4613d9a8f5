package main

import (
	"archive/tar"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMdata = `## process snapshot
# hostname: e2e-test
1000 (server) S 999 1000 1000 0 -1 4194560 100 0 0 0 10 20 0 0
`

// A short recording: the server thread (inner pid 5) hands the CPU to a
// worker (inner pid 7) that waited 4ms, then gets it back. Runtime samples
// resolve both inner pids to outer ids in the 1000 thread group.
const testDump = ` 1000/1000 [001] 100.000000000: PERF_RECORD_COMM exec: server:1000/1000
 1000/1000 [001] 100.000500000:               sched:sched_stat_runtime: comm=server pid=5 runtime=400000 [ns] vruntime=1000000 [ns]
 1000/1000 [001] 100.001000000:                     sched:sched_wakeup: comm=worker pid=7 prio=120 target_cpu=000
 1000/1000 [001] 100.005000000:                     sched:sched_switch: prev_comm=server prev_pid=5 prev_prio=120 prev_state=S ==> next_comm=worker next_pid=7 next_prio=120
 1000/1001 [001] 100.006000000:               sched:sched_stat_runtime: comm=worker pid=7 runtime=900000 [ns] vruntime=2000000 [ns]
 1000/1001 [001] 100.007000000:                     sched:sched_switch: prev_comm=worker prev_pid=7 prev_prio=120 prev_state=S ==> next_comm=server next_pid=5 next_prio=120
`

func writeRecording(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "recording.tar")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	tw := tar.NewWriter(f)
	for _, m := range []struct{ name, body string }{
		{"perf-mdata.txt", testMdata},
		{"perf.data.txt", testDump},
	} {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name: m.name, Mode: 0o644, Size: int64(len(m.body)),
		}))
		_, err = io.WriteString(tw, m.body)
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	return path
}

func runAndDecode(t *testing.T, args ...string) []map[string]any {
	t.Helper()
	out := filepath.Join(t.TempDir(), "trace.json")
	cmd := newRootCommand()
	cmd.SetArgs(append(args, out))
	require.NoError(t, cmd.Execute())

	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	var events []map[string]any
	require.NoError(t, json.Unmarshal(raw, &events))
	return events
}

func find(events []map[string]any, pred func(map[string]any) bool) []map[string]any {
	var out []map[string]any
	for _, ev := range events {
		if pred(ev) {
			out = append(out, ev)
		}
	}
	return out
}

func argName(ev map[string]any) string {
	args, _ := ev["args"].(map[string]any)
	name, _ := args["name"].(string)
	return name
}

func TestConvertEndToEnd(t *testing.T) {
	events := runAndDecode(t, writeRecording(t))
	require.NotEmpty(t, events)

	// The worker's Waiting span was deferred until its identity resolved
	// and must carry the outer ids and microsecond timestamps.
	waiting := find(events, func(ev map[string]any) bool {
		return ev["name"] == "Waiting" && ev["ph"] == "B"
	})
	require.Len(t, waiting, 1)
	assert.Equal(t, 100001000.0, waiting[0]["ts"])
	assert.Equal(t, 1000.0, waiting[0]["pid"])
	assert.Equal(t, 1001.0, waiting[0]["tid"])

	running := find(events, func(ev map[string]any) bool {
		return ev["name"] == "Running" && ev["ph"] == "E"
	})
	require.Len(t, running, 1)
	assert.Equal(t, 100007000.0, running[0]["ts"])

	// Thread names gain the inner pid suffix.
	assert.NotEmpty(t, find(events, func(ev map[string]any) bool {
		return ev["name"] == "thread_name" && argName(ev) == "server #5"
	}))

	// The synthetic processes and CPU track are present, with the CPU
	// span renamed to the worker's program name.
	assert.NotEmpty(t, find(events, func(ev map[string]any) bool {
		return ev["name"] == "process_name" && argName(ev) == "𝘊𝘗𝘜𝘴"
	}))
	assert.NotEmpty(t, find(events, func(ev map[string]any) bool {
		return ev["name"] == "worker #7" && ev["ph"] == "B"
	}))

	// Sort indexes rank the thread group by accumulated runtime.
	assert.NotEmpty(t, find(events, func(ev map[string]any) bool {
		if ev["name"] != "process_sort_index" {
			return false
		}
		args, _ := ev["args"].(map[string]any)
		return ev["pid"] == 1000.0 && args["sort_index"] == -900000.0
	}))
}

func TestConvertWaitFlag(t *testing.T) {
	// With a 10ms threshold the 4ms wait stays off the long-wait track.
	events := runAndDecode(t, writeRecording(t), "--wait", "10")
	assert.Empty(t, find(events, func(ev map[string]any) bool {
		return ev["name"] == "thread_name" && ev["tid"] == 1000000.0
	}))
}

func TestConvertBadInput(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetArgs([]string{
		filepath.Join(t.TempDir(), "missing.tar"),
		filepath.Join(t.TempDir(), "out.json"),
	})
	require.Error(t, cmd.Execute())
}
