//go:build linux

package sysinfo

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPerfCoresFrom(t *testing.T) {
	hybrid := `processor	: 0
core id		: 0
cpu MHz		: 4800.000
processor	: 1
core id		: 1
cpu MHz		: 4700.000
processor	: 2
core id		: 8
cpu MHz		: 2400.000
processor	: 3
core id		: 9
cpu MHz		: 2300.000
`
	assert.Equal(t, 2, perfCoresFrom(strings.NewReader(hybrid)))

	uniform := strings.ReplaceAll(strings.ReplaceAll(hybrid, "2400", "4800"), "2300", "4800")
	assert.Equal(t, 0, perfCoresFrom(strings.NewReader(uniform)))
	assert.Equal(t, 0, perfCoresFrom(strings.NewReader("")))
}

func TestMemoryFrom(t *testing.T) {
	total, avail := memoryFrom(strings.NewReader("MemTotal:       1000 kB\nMemFree:         100 kB\nMemAvailable:    600 kB\n"))
	assert.Equal(t, int64(1000*1024), total)
	assert.Equal(t, int64(600*1024), avail)

	total, avail = memoryFrom(strings.NewReader("MemTotal: 1000 kB\nMemFree: 100 kB\nBuffers: 20 kB\nCached: 30 kB\n"))
	assert.Equal(t, int64(1000*1024), total)
	assert.Equal(t, int64(150*1024), avail)
}

func TestHostMemory(t *testing.T) {
	m := HostMemory()
	assert.Positive(t, m.Total)
	assert.Positive(t, Workers())
}
