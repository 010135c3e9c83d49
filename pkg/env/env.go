// Package env reads process environment variables with fallbacks. Most
// configuration goes through envconfig; this covers the handful of values
// needed before config is loaded (log format, listen port).
package env

import "os"

// Prefix is prepended by Prefixed when looking up app-specific variables.
const Prefix = "CATERFLOW_"

// Get returns the value of the given environment variable or a fallback.
func Get(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// Prefixed looks up the app-prefixed variable first, then the bare name,
// then the fallback. Lets deploys set CATERFLOW_PORT without clobbering a
// platform-provided PORT.
func Prefixed(key, fallback string) string {
	if val := os.Getenv(Prefix + key); val != "" {
		return val
	}
	return Get(key, fallback)
}
