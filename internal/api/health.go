package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// ESHealthChecker reports the cluster colour alongside any error.
type ESHealthChecker interface {
	HealthCheck(ctx context.Context) (string, error)
}

type component struct {
	check    func(ctx context.Context) (string, error)
	required bool
}

// HealthHandler serves liveness and readiness. A failing required
// component makes the instance unready; a failing optional one only marks
// it degraded, since the assistant keeps answering without it.
type HealthHandler struct {
	mu         sync.RWMutex
	components map[string]component
	timeout    time.Duration
	logger     *zap.Logger
}

func NewHealthHandler(logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		components: make(map[string]component),
		timeout:    5 * time.Second,
		logger:     logger,
	}
}

func (h *HealthHandler) Register(name string, checker HealthChecker, required bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.components[name] = component{
		check: func(ctx context.Context) (string, error) {
			if err := checker.HealthCheck(ctx); err != nil {
				return statusUnhealthy, err
			}
			return statusHealthy, nil
		},
		required: required,
	}
}

func (h *HealthHandler) RegisterES(checker ESHealthChecker, required bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.components["elasticsearch"] = component{check: checker.HealthCheck, required: required}
}

const (
	statusHealthy     = "healthy"
	statusUnhealthy   = "unhealthy"
	statusDegraded    = "degraded"
	statusUnavailable = "unavailable"
)

type componentHealth struct {
	Status   string `json:"status"`
	Required bool   `json:"required"`
	Latency  string `json:"latency,omitempty"`
	Error    string `json:"error,omitempty"`
}

func (ch componentHealth) failing() bool {
	return ch.Status == statusUnhealthy || ch.Status == "red" || ch.Error != ""
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "alive"})
}

func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	h.mu.RLock()
	components := make(map[string]component, len(h.components))
	for name, c := range h.components {
		components[name] = c
	}
	h.mu.RUnlock()

	results := make(map[string]componentHealth, len(components))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for name, c := range components {
		wg.Add(1)
		go func(n string, c component) {
			defer wg.Done()
			start := time.Now()
			status, err := c.check(ctx)
			ch := componentHealth{
				Status:   status,
				Required: c.required,
				Latency:  time.Since(start).String(),
			}
			if err != nil {
				ch.Error = err.Error()
			}
			mu.Lock()
			results[n] = ch
			mu.Unlock()
		}(name, c)
	}

	wg.Wait()

	code := http.StatusOK
	overall := statusHealthy
	for name, ch := range results {
		if !ch.failing() {
			continue
		}
		h.logger.Warn("readiness check failed",
			zap.String("component", name),
			zap.Bool("required", ch.Required),
			zap.String("error", ch.Error),
		)
		if ch.Required {
			code = http.StatusServiceUnavailable
			overall = statusUnavailable
		} else if overall == statusHealthy {
			overall = statusDegraded
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]any{
		"status":     overall,
		"components": results,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	})
}
