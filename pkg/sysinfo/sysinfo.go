// Package sysinfo sizes worker pools and buffers from the host.
package sysinfo

import "runtime"

// Memory is the physical memory of the host in bytes
type Memory struct {
	Total     int64
	Available int64
}

const (
	fallbackTotal     = 16 << 30
	fallbackAvailable = 12 << 30
)

// Workers returns the number of performance cores, or all logical CPUs
// when core types cannot be told apart
func Workers() int {
	if n := perfCores(); n > 0 {
		return n
	}
	return runtime.NumCPU()
}

// HostMemory returns total and available memory, with a 16 GiB guess when
// the platform cannot report it
func HostMemory() Memory {
	total, available := memory()
	if total <= 0 {
		return Memory{Total: fallbackTotal, Available: fallbackAvailable}
	}
	return Memory{Total: total, Available: available}
}
