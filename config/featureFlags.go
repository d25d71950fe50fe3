package config

import (
	"os"
	"strings"
)

// SnapshotCacheEnabled gates the redis read-through cache in front of
// snapshot lookups. The database remains the source of truth either way.
//
// Set via env:
// - ENABLE_SNAPSHOT_CACHE=true
func SnapshotCacheEnabled() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("ENABLE_SNAPSHOT_CACHE")))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

// SingleFlightEnabled gates the per-hash redis lock that collapses concurrent
// cache-miss generations for the same parameters into one. Duplicate work is
// harmless without it (generation is idempotent, latest snapshot wins), so
// this is an optimization only.
//
// Set via env:
// - ENABLE_EXPORT_SINGLE_FLIGHT=true
func SingleFlightEnabled() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("ENABLE_EXPORT_SINGLE_FLIGHT")))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}
