package api

import (
	"context"
	"net/http"
	"time"
)

// Checker reports whether one dependency is usable.
type Checker func(ctx context.Context) error

type HealthAPI struct {
	checks  map[string]Checker
	timeout time.Duration
}

func NewHealthAPI(checks map[string]Checker) *HealthAPI {
	return &HealthAPI{checks: checks, timeout: 2 * time.Second}
}

type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Health handles GET /health. Any failing check turns the response into a
// 503.
func (api *HealthAPI) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), api.timeout)
	defer cancel()

	resp := HealthResponse{Status: "ok", Checks: make(map[string]string, len(api.checks))}
	code := http.StatusOK
	for name, check := range api.checks {
		if err := check(ctx); err != nil {
			resp.Checks[name] = "unavailable"
			resp.Status = "unhealthy"
			code = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}

	writeJSON(w, code, resp)
}
