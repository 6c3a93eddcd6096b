package monitoring

import (
	"context"
	"time"

	"reelhub/internal/core/ports"
)

// AddStoreCheck adds a document store health check
func (h *HealthChecker) AddStoreCheck(name string, store ports.DocumentStore, timeout time.Duration) {
	h.AddCheck(name, func(ctx context.Context) (bool, error) {
		if err := store.Ping(ctx); err != nil {
			return false, err
		}
		return true, nil
	}, timeout)
}

// Ready reports whether every check passed and the service may take traffic.
func (s HealthStatus) Ready() bool {
	return s.Status == "healthy"
}
