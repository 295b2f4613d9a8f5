package traceevent

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerialization_OmitsAbsentFields(t *testing.T) {
	tests := []struct {
		name string
		ev   *Event
		want map[string]any
	}{
		{
			name: "process name has no ts or tid",
			ev:   ProcessName(42, "init"),
			want: map[string]any{
				"name": "process_name",
				"ph":   "M",
				"pid":  float64(42),
				"args": map[string]any{"name": "init"},
			},
		},
		{
			name: "thread name carries pid and tid",
			ev:   ThreadName(42, 43, "worker"),
			want: map[string]any{
				"name": "thread_name",
				"ph":   "M",
				"pid":  float64(42),
				"tid":  float64(43),
				"args": map[string]any{"name": "worker"},
			},
		},
		{
			name: "begin without args omits args",
			ev:   Begin("Running", 1500, nil),
			want: map[string]any{
				"name": "Running",
				"ph":   "B",
				"ts":   float64(1500),
			},
		},
		{
			name: "instant carries scope",
			ev:   Instant("thread_exit", 7, 8, 1000, Args{"cpu": int64(3)}),
			want: map[string]any{
				"name": "thread_exit",
				"ph":   "i",
				"ts":   float64(1000),
				"pid":  float64(7),
				"tid":  float64(8),
				"s":    "p",
				"args": map[string]any{"cpu": float64(3)},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := json.Marshal(tt.ev)
			require.NoError(t, err)

			var got map[string]any
			require.NoError(t, json.Unmarshal(raw, &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSerialization_ZeroTimestampIsEmitted(t *testing.T) {
	// A present timestamp of 0 is meaningful and must not be dropped.
	raw, err := json.Marshal(Begin("Waiting", 0, nil))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"ts":0`)
}

func TestWriteDocument(t *testing.T) {
	var buf bytes.Buffer
	events := []*Event{
		ProcessName(1, "init"),
		ProcessSortIndex(1, -100),
	}
	require.NoError(t, WriteDocument(&buf, events))

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, "process_name", decoded[0]["name"])
	assert.Equal(t, "process_sort_index", decoded[1]["name"])
	assert.Equal(t, float64(-100), decoded[1]["args"].(map[string]any)["sort_index"])
}

func TestSortIndexEventShape(t *testing.T) {
	ev := ThreadSortIndex(5, 0, -1)
	require.NotNil(t, ev.PID)
	require.NotNil(t, ev.TID)
	assert.Equal(t, int64(5), *ev.PID)
	assert.Equal(t, int64(0), *ev.TID)
	assert.Equal(t, Args{"sort_index": int64(-1)}, ev.Args)
	assert.Nil(t, ev.TS)
}
