package scheduler

import (
	"strconv"
	"strings"

	"horus/pkg/config"
	"horus/pkg/control"
)

// applyOSKnobs best-effort applies the §6 "realtime.*"/"resources.*" OS
// integration knobs (RT scheduling class, memory locking, CPU affinity)
// and records what was requested versus what actually took effect. A
// knob that can't be applied (wrong OS, missing privilege) never fails
// the run; it's only ever reported, matching the "graceful OS-knob
// degradation" invariant.
func applyOSKnobs(cfg config.RuntimeConfig) map[string]control.OSKnobStatus {
	report := make(map[string]control.OSKnobStatus, 3)

	if class := cfg.Realtime.SchedulingClass; class != "" {
		report["scheduling_class"] = trySchedulingClass(class)
	}

	if cfg.Realtime.MemoryLocking {
		report["memory_locking"] = tryMemoryLocking()
	}

	if ids := parseCPUCoreIDs(cfg.Resources.CPUCores); len(ids) > 0 {
		report["cpu_affinity"] = tryCPUAffinity(cfg.Resources.CPUCores, ids)
	}

	return report
}

// parseCPUCoreIDs expands resources.cpu_cores ("4", "0,1,2,3", "0-3,7")
// into the individual core IDs to pin, for the affinity knob. Unlike
// parseCPUCores (which only needs a worker count for the Parallel
// executor), this needs real core numbers.
func parseCPUCoreIDs(spec string) []int {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil
	}

	if n, err := strconv.Atoi(spec); err == nil && n > 0 {
		ids := make([]int, n)
		for i := range ids {
			ids[i] = i
		}

		return ids
	}

	var ids []int

	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		if lo, hi, ok := parseCoreRange(part); ok {
			for i := lo; i <= hi; i++ {
				ids = append(ids, i)
			}

			continue
		}

		if n, err := strconv.Atoi(part); err == nil {
			ids = append(ids, n)
		}
	}

	return ids
}

func parseCoreRange(part string) (lo, hi int, ok bool) {
	idx := strings.Index(part, "-")
	if idx <= 0 {
		return 0, 0, false
	}

	lo, errLo := strconv.Atoi(part[:idx])
	hi, errHi := strconv.Atoi(part[idx+1:])

	if errLo != nil || errHi != nil || hi < lo {
		return 0, 0, false
	}

	return lo, hi, true
}
