package http

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/kho-shard/internal/application/dto"
	"github.com/jhoicas/kho-shard/internal/shard"
)

// Cabeceras de ruteo.
const (
	HeaderShardKey   = "X-Shard-Key"
	HeaderRegionCode = "X-Region-Code"
	HeaderGlobal     = "X-Global"
)

// LocalRouteHint key del RouteHint en Fiber locals.
const LocalRouteHint = "route_hint"

// RoutingMiddleware lee X-Shard-Key, X-Region-Code y X-Global y deja el RouteHint en c.Locals.
func RoutingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		hint := shard.RouteHint{
			ShardKey:   strings.TrimSpace(c.Get(HeaderShardKey)),
			RegionCode: shard.NormalizeRegion(c.Get(HeaderRegionCode)),
		}
		if raw := strings.TrimSpace(c.Get(HeaderGlobal)); raw != "" {
			global, err := strconv.ParseBool(raw)
			if err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_HEADER", Message: HeaderGlobal + " debe ser true o false"})
			}
			hint.Global = global
		}
		c.Locals(LocalRouteHint, hint)
		return c.Next()
	}
}

// GetRouteHint devuelve el RouteHint del contexto (después de RoutingMiddleware).
// Sin middleware devuelve el hint vacío, que resuelve al master.
func GetRouteHint(c *fiber.Ctx) shard.RouteHint {
	v := c.Locals(LocalRouteHint)
	if v == nil {
		return shard.RouteHint{}
	}
	h, _ := v.(shard.RouteHint)
	return h
}
