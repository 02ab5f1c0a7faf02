//go:build darwin

package pipeline

import (
	"runtime"
	"syscall"
)

// detectWorkers prefers the performance cores of Apple silicon
func detectWorkers() int {
	for _, name := range []string{"hw.perflevel0.physicalcpu", "hw.physicalcpu"} {
		if n, err := syscall.SysctlUint32(name); err == nil && n > 0 {
			return int(n)
		}
	}
	return runtime.NumCPU()
}
