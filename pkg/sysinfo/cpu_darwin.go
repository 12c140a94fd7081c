//go:build darwin

package sysinfo

import "syscall"

// perfCores reads the performance level 0 core count of Apple Silicon,
// falling back to the physical core count
func perfCores() int {
	for _, name := range []string{"hw.perflevel0.physicalcpu", "hw.physicalcpu"} {
		if n := sysctlInt(name); n > 0 {
			return n
		}
	}
	return 0
}

// sysctlInt decodes the little-endian integer sysctl returns as raw bytes
func sysctlInt(name string) int {
	raw, err := syscall.Sysctl(name)
	if err != nil {
		return 0
	}
	n := 0
	for i := 0; i < len(raw) && i < 8; i++ {
		n |= int(raw[i]) << (8 * i)
	}
	return n
}
