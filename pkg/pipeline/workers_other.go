//go:build !darwin && !linux

package pipeline

import "runtime"

func detectWorkers() int {
	return runtime.NumCPU()
}
