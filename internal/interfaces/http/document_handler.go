package http

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/kho-shard/internal/application/dto"
	"github.com/jhoicas/kho-shard/internal/application/inventory"
	"github.com/jhoicas/kho-shard/internal/domain/entity"
	"github.com/jhoicas/kho-shard/internal/shard"
)

// DocumentService operaciones del motor que expone la API (lo implementa *inventory.DocumentEngine).
type DocumentService interface {
	CreateImport(ctx context.Context, hint shard.RouteHint, in inventory.CreateDocumentInput) (string, error)
	CreateExport(ctx context.Context, hint shard.RouteHint, in inventory.CreateDocumentInput) (string, error)
	UpdateImport(ctx context.Context, hint shard.RouteHint, in inventory.UpdateDocumentInput) error
	UpdateExport(ctx context.Context, hint shard.RouteHint, in inventory.UpdateDocumentInput) error
	DeleteImport(ctx context.Context, hint shard.RouteHint, id string) error
	DeleteExport(ctx context.Context, hint shard.RouteHint, id string) error
	GetDocument(ctx context.Context, hint shard.RouteHint, kind entity.DocumentKind, id string) (*entity.Document, error)
	GetStockLevel(ctx context.Context, hint shard.RouteHint, warehouseID, productID string) (*entity.StockLevel, error)
	ListDocuments(ctx context.Context, hint shard.RouteHint, kind entity.DocumentKind, in inventory.ListDocumentsInput) (*inventory.DocumentList, error)
	ListStock(ctx context.Context, hint shard.RouteHint, warehouseID string, page, limit int) (*inventory.StockList, error)
}

var _ DocumentService = (*inventory.DocumentEngine)(nil)

// DocumentHandler maneja las peticiones HTTP de entradas, salidas y existencias.
type DocumentHandler struct {
	svc DocumentService
}

// NewDocumentHandler construye el handler.
func NewDocumentHandler(svc DocumentService) *DocumentHandler {
	return &DocumentHandler{svc: svc}
}

// Create godoc
// @Summary      Crear entrada o salida
// @Tags         documents
// @Accept       json
// @Produce      json
// @Param        X-Region-Code  header  string  false  "Región (KV1, KV2, ...)"
// @Param        X-Shard-Key    header  string  false  "Shard explícito"
// @Param        body  body  dto.CreateDocumentRequest  true  "warehouse_id, supplier_id (entradas), date, note, lines"
// @Success      201   {object}  dto.CreatedResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/imports [post]
// @Router       /api/exports [post]
func (h *DocumentHandler) Create(kind entity.DocumentKind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body dto.CreateDocumentRequest
		if err := c.BodyParser(&body); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
		}
		in, err := inventory.CreateInputFromRequest(body)
		if err != nil {
			return writeError(c, err)
		}
		hint := GetRouteHint(c)
		var id string
		if kind == entity.DocumentImport {
			id, err = h.svc.CreateImport(c.Context(), hint, in)
		} else {
			id, err = h.svc.CreateExport(c.Context(), hint, in)
		}
		if err != nil {
			return writeError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(dto.CreatedResponse{ID: id})
	}
}

// Update godoc
// @Summary      Editar fecha, nota y líneas de un documento
// @Tags         documents
// @Accept       json
// @Produce      json
// @Param        id    path  string  true  "ID del documento"
// @Param        body  body  dto.UpdateDocumentRequest  true  "date, note, lines"
// @Success      204
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/imports/{id} [put]
// @Router       /api/exports/{id} [put]
func (h *DocumentHandler) Update(kind entity.DocumentKind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body dto.UpdateDocumentRequest
		if err := c.BodyParser(&body); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
		}
		in, err := inventory.UpdateInputFromRequest(c.Params("id"), body)
		if err != nil {
			return writeError(c, err)
		}
		hint := GetRouteHint(c)
		if kind == entity.DocumentImport {
			err = h.svc.UpdateImport(c.Context(), hint, in)
		} else {
			err = h.svc.UpdateExport(c.Context(), hint, in)
		}
		if err != nil {
			return writeError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// Delete godoc
// @Summary      Eliminar un documento revirtiendo su efecto en el stock
// @Tags         documents
// @Param        id  path  string  true  "ID del documento"
// @Success      204
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/imports/{id} [delete]
// @Router       /api/exports/{id} [delete]
func (h *DocumentHandler) Delete(kind entity.DocumentKind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var err error
		hint := GetRouteHint(c)
		if kind == entity.DocumentImport {
			err = h.svc.DeleteImport(c.Context(), hint, c.Params("id"))
		} else {
			err = h.svc.DeleteExport(c.Context(), hint, c.Params("id"))
		}
		if err != nil {
			return writeError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// Get godoc
// @Summary      Obtener documento con sus líneas
// @Tags         documents
// @Produce      json
// @Param        id  path  string  true  "ID del documento"
// @Success      200  {object}  dto.DocumentResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/imports/{id} [get]
// @Router       /api/exports/{id} [get]
func (h *DocumentHandler) Get(kind entity.DocumentKind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		doc, err := h.svc.GetDocument(c.Context(), GetRouteHint(c), kind, c.Params("id"))
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(inventory.DocumentResponseFrom(doc))
	}
}

// GetStock godoc
// @Summary      Existencias de un producto en una bodega
// @Tags         stock
// @Produce      json
// @Param        warehouseId  path  string  true  "ID de la bodega"
// @Param        productId    path  string  true  "ID del producto"
// @Success      200  {object}  dto.StockLevelResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/stock/{warehouseId}/{productId} [get]
func (h *DocumentHandler) GetStock(c *fiber.Ctx) error {
	lvl, err := h.svc.GetStockLevel(c.Context(), GetRouteHint(c), c.Params("warehouseId"), c.Params("productId"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(inventory.StockLevelResponseFrom(lvl))
}

// List godoc
// @Summary      Listar entradas o salidas
// @Tags         documents
// @Produce      json
// @Param        warehouse_id  query  string  false  "Bodega"
// @Param        supplier_id   query  string  false  "Proveedor (solo entradas)"
// @Param        from          query  string  false  "Desde (YYYY-MM-DD)"
// @Param        to            query  string  false  "Hasta (YYYY-MM-DD)"
// @Param        search        query  string  false  "Texto en la nota"
// @Param        page          query  int     false  "Página (desde 1)"
// @Param        limit         query  int     false  "Tamaño de página (máx. 100)"
// @Success      200  {object}  dto.DocumentListResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Router       /api/imports [get]
// @Router       /api/exports [get]
func (h *DocumentHandler) List(kind entity.DocumentKind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var q dto.ListDocumentsQuery
		if err := c.QueryParser(&q); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_PARAMS", Message: "parámetros de consulta inválidos"})
		}
		in, err := inventory.ListInputFromQuery(q)
		if err != nil {
			return writeError(c, err)
		}
		list, err := h.svc.ListDocuments(c.Context(), GetRouteHint(c), kind, in)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(inventory.DocumentListResponseFrom(list))
	}
}

// ListStock godoc
// @Summary      Existencias de una bodega
// @Tags         stock
// @Produce      json
// @Param        warehouseId  path   string  true   "ID de la bodega"
// @Param        page         query  int     false  "Página (desde 1)"
// @Param        limit        query  int     false  "Tamaño de página (máx. 100)"
// @Success      200  {object}  dto.StockListResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/stock/{warehouseId} [get]
func (h *DocumentHandler) ListStock(c *fiber.Ctx) error {
	list, err := h.svc.ListStock(c.Context(), GetRouteHint(c), c.Params("warehouseId"), c.QueryInt("page", 1), c.QueryInt("limit", inventory.DefaultPageLimit))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(inventory.StockListResponseFrom(list))
}
