//go:build !impala

package query

// registerImpala is a no-op unless built with the impala tag
func registerImpala(Registry) {}
