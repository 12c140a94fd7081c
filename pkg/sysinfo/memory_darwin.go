//go:build darwin

package sysinfo

// memory reports hw.memsize and assumes three quarters of it is available
func memory() (total, available int64) {
	total = int64(sysctlInt("hw.memsize"))
	return total, total * 3 / 4
}
