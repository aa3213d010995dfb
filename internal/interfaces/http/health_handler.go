package http

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/kho-shard/internal/application/dto"
)

// Pinger diagnóstico de conexiones (lo implementa *shard.Registry).
type Pinger interface {
	PingAll(ctx context.Context) map[string]error
}

// HealthHandler reporta el estado de master y shards. Siempre responde 200: una conexión caída
// no impide atender las regiones restantes.
type HealthHandler struct {
	pinger  Pinger
	timeout time.Duration
}

// NewHealthHandler timeout limita la espera de cada ronda de pings.
func NewHealthHandler(pinger Pinger, timeout time.Duration) *HealthHandler {
	return &HealthHandler{pinger: pinger, timeout: timeout}
}

// Health godoc
// @Summary      Estado de las conexiones
// @Tags         health
// @Produce      json
// @Success      200  {object}  dto.HealthResponse
// @Router       /health [get]
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), h.timeout)
	defer cancel()

	out := dto.HealthResponse{Status: "ok", Connections: map[string]string{}}
	for key, err := range h.pinger.PingAll(ctx) {
		if err != nil {
			out.Connections[key] = err.Error()
			out.Status = "degraded"
			continue
		}
		out.Connections[key] = "ok"
	}
	return c.JSON(out)
}
