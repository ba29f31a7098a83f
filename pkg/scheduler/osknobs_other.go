//go:build !(linux && rootful)

package scheduler

import "horus/pkg/control"

// On non-Linux platforms, or Linux builds without the rootful tag, every
// OS-integration knob is reported as requested-but-not-applied rather
// than failing the run (spec §5 "graceful OS-knob degradation").

func trySchedulingClass(name string) control.OSKnobStatus {
	return control.OSKnobStatus{Requested: name, Applied: false, Detail: "unsupported on this build"}
}

func tryMemoryLocking() control.OSKnobStatus {
	return control.OSKnobStatus{Requested: "mlockall", Applied: false, Detail: "unsupported on this build"}
}

func tryCPUAffinity(spec string, _ []int) control.OSKnobStatus {
	return control.OSKnobStatus{Requested: spec, Applied: false, Detail: "unsupported on this build"}
}
