package instance

import (
	"os"

	"github.com/marquezdaniela/reciclaje-municipal/pkg/env"
)

// GetID returns the process instance identifier used for logs and cron locks.
func GetID() string {
	if id := env.Get("WORKER_ID", ""); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "worker-0"
}
