package instance

import "os"

// GetID identifies this worker process in logs. WAREHOUSE_INSTANCE_ID wins,
// then the host name, then a fixed default.
func GetID() string {
	if id := os.Getenv("WAREHOUSE_INSTANCE_ID"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "worker-0"
}
