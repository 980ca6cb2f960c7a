package instance

import (
	"fmt"
	"os"

	"github.com/comparteride/circles-backend/pkg/env"
)

// GetID names this worker process for lock ownership and logs: WORKER_ID
// (or CRIDE_WORKER_ID) when configured, else hostname-pid.
func GetID() string {
	if id := env.Get("WORKER_ID", ""); id != "" {
		return id
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
