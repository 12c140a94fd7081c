//go:build !duckdb

package query

// registerDuckDB is a no-op unless built with the duckdb tag
func registerDuckDB(Registry) {}
