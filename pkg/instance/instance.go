package instance

import (
	"os"
	"strings"
)

const envWorkerID = "ELOCALPASS_WORKER_ID"

// GetID identifies this process in lock owner tokens and logs.
// It prefers ELOCALPASS_WORKER_ID, then the hostname.
func GetID() string {
	if id := strings.TrimSpace(os.Getenv(envWorkerID)); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "worker-0"
}
