package handler

import (
	"context"
	"time"

	"apply-codes/internal/pkg/response"

	"github.com/gofiber/fiber/v3"
)

// Pinger is a dependency whose reachability is reported by /health.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	service string
	checks  map[string]Pinger
	started time.Time
}

func NewHealthHandler(service string, checks map[string]Pinger) *HealthHandler {
	return &HealthHandler{service: service, checks: checks, started: time.Now()}
}

// Health never fails: a dependency that does not answer is reported as
// degraded, the process itself is still up.
func (h *HealthHandler) Health(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
	defer cancel()

	status := "healthy"
	deps := make(map[string]string, len(h.checks))
	for name, p := range h.checks {
		if p == nil {
			deps[name] = "disabled"
			continue
		}
		if err := p.Ping(ctx); err != nil {
			deps[name] = "unavailable"
			status = "degraded"
			continue
		}
		deps[name] = "ok"
	}

	return response.Success(c, fiber.StatusOK, fiber.Map{
		"status":       status,
		"service":      h.service,
		"timestamp":    time.Now().UTC(),
		"uptime":       time.Since(h.started).Round(time.Second).String(),
		"dependencies": deps,
	})
}

func (h *HealthHandler) RegisterRoutes(r fiber.Router) {
	r.Get("/health", h.Health)
	r.Get("/api/health", h.Health)
}
