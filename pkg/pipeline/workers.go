package pipeline

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

// maxWorkers caps DefaultWorkers
const maxWorkers = 32

// DefaultWorkers is the worker count used when none is configured. On hybrid
// CPUs only the performance cores are counted.
func DefaultWorkers() int {
	n := detectWorkers()
	if n < 1 {
		n = 1
	}
	if n > maxWorkers {
		n = maxWorkers
	}
	return n
}

// perfCores counts the physical cores of a /proc/cpuinfo listing that run
// within 10% of the mean core frequency. It returns 0 unless the listing
// shows a mix of fast and slow cores.
func perfCores(cpuinfo io.Reader) int {
	coreMHz := make(map[int]float64)
	core, mhz := -1, 0.0
	flush := func() {
		if core >= 0 && mhz > coreMHz[core] {
			coreMHz[core] = mhz
		}
		core, mhz = -1, 0
	}

	sc := bufio.NewScanner(cpuinfo)
	for sc.Scan() {
		key, value, ok := strings.Cut(sc.Text(), ":")
		if !ok {
			continue
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		switch key {
		case "processor":
			flush()
		case "core id":
			if id, err := strconv.Atoi(value); err == nil {
				core = id
			}
		case "cpu MHz":
			if f, err := strconv.ParseFloat(value, 64); err == nil {
				mhz = f
			}
		}
	}
	flush()
	if len(coreMHz) <= 2 {
		return 0
	}

	var sum float64
	for _, mhz := range coreMHz {
		sum += mhz
	}
	mean := sum / float64(len(coreMHz))

	fast := 0
	for _, mhz := range coreMHz {
		if mhz >= mean*0.9 {
			fast++
		}
	}
	if fast == len(coreMHz) {
		return 0
	}
	return fast
}
