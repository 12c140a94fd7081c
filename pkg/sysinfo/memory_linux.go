//go:build linux

package sysinfo

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"
)

func memory() (total, available int64) {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0, 0
	}
	defer f.Close()
	return memoryFrom(f)
}

// memoryFrom parses /proc/meminfo. Kernels without MemAvailable get
// MemFree + Buffers + Cached instead.
func memoryFrom(r io.Reader) (total, available int64) {
	kb := make(map[string]int64)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		if v, err := strconv.ParseInt(fields[1], 10, 64); err == nil {
			kb[strings.TrimSuffix(fields[0], ":")] = v
		}
	}
	total = kb["MemTotal"] * 1024
	if v, ok := kb["MemAvailable"]; ok {
		return total, v * 1024
	}
	return total, (kb["MemFree"] + kb["Buffers"] + kb["Cached"]) * 1024
}
