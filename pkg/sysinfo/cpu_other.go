//go:build !darwin && !linux

package sysinfo

func perfCores() int { return 0 }
