package engine

import "fmt"

// Kernel state codes reported on sched_switch, explaining why a thread was
// de-scheduled (from https://perfetto.dev/docs/data-sources/cpu-scheduling).
var stateNames = map[string]string{
	"R":  "Runnable",
	"R+": "Runnable (Preempted)",
	"S":  "Sleeping",
	"D":  "Uninterruptible Sleep",
	"T":  "Stopped",
	"t":  "Traced",
	"X":  "Exit (Dead)",
	"Z":  "Exit (Zombie)",
	"x":  "Task Dead",
	"I":  "Idle",
	"K":  "Wake Kill",
	"W":  "Waking",
	"P":  "Parked",
	"N":  "No Load",
}

// expandState translates a short state code into a self-describing label.
func expandState(state string) string {
	expanded, ok := stateNames[state]
	if !ok {
		expanded = "Unknown"
	}
	return fmt.Sprintf("%s [%s]", state, expanded)
}
