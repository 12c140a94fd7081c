//go:build linux

package sysinfo

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"
)

// perfCores counts physical cores clocked within 10% of the mean on hybrid
// CPUs. Homogeneous CPUs report 0.
func perfCores() int {
	f, err := os.Open("/proc/cpuinfo")
	if err != nil {
		return 0
	}
	defer f.Close()
	return perfCoresFrom(f)
}

func perfCoresFrom(r io.Reader) int {
	coreMHz := make(map[int]float64)
	coreID := -1
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case "core id":
			if id, err := strconv.Atoi(value); err == nil {
				coreID = id
			}
		case "cpu MHz":
			mhz, err := strconv.ParseFloat(value, 64)
			if err == nil && coreID >= 0 && mhz > coreMHz[coreID] {
				coreMHz[coreID] = mhz
			}
		}
	}
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
