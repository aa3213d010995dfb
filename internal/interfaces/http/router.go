package http

import (
	nethttp "net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/jhoicas/kho-shard/internal/domain/entity"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Documents     DocumentService
	Connections   Pinger
	Metrics       nethttp.Handler // nil deshabilita /metrics
	HealthTimeout time.Duration
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	timeout := deps.HealthTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	app.Get("/health", NewHealthHandler(deps.Connections, timeout).Health)
	if deps.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(deps.Metrics))
	}

	api := app.Group("/api", RoutingMiddleware())
	docs := NewDocumentHandler(deps.Documents)

	for prefix, kind := range map[string]entity.DocumentKind{
		"/imports": entity.DocumentImport,
		"/exports": entity.DocumentExport,
	} {
		g := api.Group(prefix)
		g.Get("/", docs.List(kind))
		g.Post("/", docs.Create(kind))
		g.Get("/:id", docs.Get(kind))
		g.Put("/:id", docs.Update(kind))
		g.Delete("/:id", docs.Delete(kind))
	}

	api.Get("/stock/:warehouseId", docs.ListStock)
	api.Get("/stock/:warehouseId/:productId", docs.GetStock)
}
