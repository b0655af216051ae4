// ringside/utils/env.go
package utils

import "os"

// envPrefix namespaces every ringside configuration variable.
const envPrefix = "RINGSIDE_"

// GetEnv reads a RINGSIDE_-prefixed environment variable or returns a
// default value. Callers pass the bare name: GetEnv("PORT", "8080") reads
// RINGSIDE_PORT.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(envPrefix + key); ok {
		return value
	}
	return fallback
}
