package instance

import (
	"os"
	"strings"
)

const EnvInstanceID = "ORDERSTOCK_INSTANCE_ID"

// GetID identifies the running process in logs. It prefers the explicit
// instance id, then the container hostname, then a fixed fallback.
func GetID() string {
	if id := strings.TrimSpace(os.Getenv(EnvInstanceID)); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
