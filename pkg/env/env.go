package env

import "os"

// Prefix namespaces the service's own environment variables.
const Prefix = "CRIDE_"

// Get returns CRIDE_<key> when set, then the bare key, then fallback. The
// bare name keeps platform-provided variables such as LOG_FORMAT working.
func Get(key, fallback string) string {
	if val := os.Getenv(Prefix + key); val != "" {
		return val
	}
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
