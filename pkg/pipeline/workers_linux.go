//go:build linux

package pipeline

import (
	"os"
	"runtime"
)

func detectWorkers() int {
	f, err := os.Open("/proc/cpuinfo")
	if err != nil {
		return runtime.NumCPU()
	}
	defer f.Close()

	if n := perfCores(f); n > 0 {
		return n
	}
	return runtime.NumCPU()
}
