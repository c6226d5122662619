package api

import (
	"context"
	"net/http"
	"sync"
	"time"
)

const healthCheckTimeout = 5 * time.Second

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// handleHealth reports UP when every dependency answers and DEGRADED otherwise.
// The status code stays 200 so a slow upstream does not take the service out of rotation.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	resp := healthResponse{Status: "UP", Checks: make(map[string]string, len(h.checks))}
	for name, check := range h.checks {
		if err := check.Ping(ctx); err != nil {
			resp.Checks[name] = "DOWN: " + err.Error()
			resp.Status = "DEGRADED"
			continue
		}
		resp.Checks[name] = "UP"
	}
	JSON(w, http.StatusOK, resp)
}

// CachedPinger remembers the last result of p for ttl. Used for checks
// that cost something to run, like a model completion.
func CachedPinger(p Pinger, ttl time.Duration) Pinger {
	return &cachedPinger{next: p, ttl: ttl, now: time.Now}
}

type cachedPinger struct {
	next Pinger
	ttl  time.Duration
	now  func() time.Time

	mu      sync.Mutex
	checked time.Time
	err     error
}

func (c *cachedPinger) Ping(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.checked.IsZero() && c.now().Sub(c.checked) < c.ttl {
		return c.err
	}
	c.err = c.next.Ping(ctx)
	c.checked = c.now()
	return c.err
}
