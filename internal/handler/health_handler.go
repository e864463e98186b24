package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// Pinger is an interface for health check ping operations.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Probe reports whether a background component (outbox dispatcher,
// reconciler) is currently live.
type Probe func() bool

// HealthHandler handles health check requests.
type HealthHandler struct {
	pool   Pinger
	probes map[string]Probe
}

// NewHealthHandler creates a new HealthHandler with the given database pool.
func NewHealthHandler(pool Pinger) *HealthHandler {
	return &HealthHandler{pool: pool, probes: make(map[string]Probe)}
}

// AddProbe registers a named liveness probe. Call before serving.
func (h *HealthHandler) AddProbe(name string, p Probe) {
	h.probes[name] = p
}

// Check performs a health check by pinging the database and running the
// registered component probes.
// Returns 200 OK with {"status": "healthy"} when everything is up.
// Returns 503 Service Unavailable with a per-component breakdown otherwise.
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	if err := h.pool.Ping(c.Context()); err != nil {
		log.Error().Err(err).Msg("health check failed: database unreachable")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "unhealthy",
			"error":  "database connection failed",
		})
	}

	components := make(map[string]string, len(h.probes))
	healthy := true
	for name, probe := range h.probes {
		if probe() {
			components[name] = "up"
		} else {
			components[name] = "down"
			healthy = false
		}
	}

	if !healthy {
		log.Error().Interface("components", components).Msg("health check failed: component down")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status":     "unhealthy",
			"components": components,
		})
	}

	resp := fiber.Map{"status": "healthy"}
	if len(components) > 0 {
		resp["components"] = components
	}
	return c.JSON(resp)
}
