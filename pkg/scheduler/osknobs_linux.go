//go:build linux && rootful

package scheduler

import (
	"fmt"
	"strings"

	"golang.org/x/sys/unix"

	"horus/pkg/control"
)

var schedClasses = map[string]int{
	"other": unix.SCHED_OTHER,
	"fifo":  unix.SCHED_FIFO,
	"rr":    unix.SCHED_RR,
	"idle":  unix.SCHED_IDLE,
	"batch": unix.SCHED_BATCH,
}

// trySchedulingClass requests the named RT scheduling class for pid 0
// (the calling thread), generalized from the teacher's sched_idle_linux.go
// (which only ever requested SCHED_IDLE) to any of the classes the
// realtime.scheduling_class config option may name.
func trySchedulingClass(name string) control.OSKnobStatus {
	policy, ok := schedClasses[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return control.OSKnobStatus{Requested: name, Applied: false, Detail: "unknown scheduling class"}
	}

	param := &unix.SchedParam{}
	if policy == unix.SCHED_FIFO || policy == unix.SCHED_RR {
		param.Priority = 1
	}

	if err := unix.SchedSetscheduler(0, policy, param); err != nil {
		return control.OSKnobStatus{Requested: name, Applied: false, Detail: err.Error()}
	}

	return control.OSKnobStatus{Requested: name, Applied: true}
}

// tryMemoryLocking locks the process's current and future memory pages,
// preventing RT nodes from taking a page-fault stall.
func tryMemoryLocking() control.OSKnobStatus {
	if err := unix.Mlockall(unix.MCL_CURRENT | unix.MCL_FUTURE); err != nil {
		return control.OSKnobStatus{Requested: "mlockall", Applied: false, Detail: err.Error()}
	}

	return control.OSKnobStatus{Requested: "mlockall", Applied: true}
}

// tryCPUAffinity pins the calling thread to the requested core set.
func tryCPUAffinity(spec string, ids []int) control.OSKnobStatus {
	var set unix.CPUSet

	set.Zero()

	for _, id := range ids {
		if id < 0 {
			return control.OSKnobStatus{Requested: spec, Applied: false, Detail: fmt.Sprintf("invalid core id %d", id)}
		}

		set.Set(id)
	}

	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return control.OSKnobStatus{Requested: spec, Applied: false, Detail: err.Error()}
	}

	return control.OSKnobStatus{Requested: spec, Applied: true}
}
