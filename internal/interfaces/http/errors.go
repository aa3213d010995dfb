package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/kho-shard/internal/application/dto"
	"github.com/jhoicas/kho-shard/internal/domain"
)

// writeError traduce errores de dominio a respuesta HTTP.
func writeError(c *fiber.Ctx, err error) error {
	var (
		insuf   *domain.InsufficientStockError
		ref     *domain.ReferenceNotFoundError
		dup     *domain.DuplicateLineError
		routing *domain.RoutingError
	)
	switch {
	case errors.As(err, &insuf):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
			Code:    "INSUFFICIENT_STOCK",
			Message: err.Error(),
			Details: map[string]any{
				"warehouse_id": insuf.WarehouseID,
				"product_id":   insuf.ProductID,
				"requested":    insuf.Requested,
				"available":    insuf.Available,
			},
		})
	case errors.Is(err, domain.ErrInsufficientStock):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "INSUFFICIENT_STOCK", Message: err.Error()})
	case errors.As(err, &ref):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
			Code:    "REFERENCE_NOT_FOUND",
			Message: err.Error(),
			Details: map[string]any{"entity": ref.Entity, "id": ref.ID},
		})
	case errors.As(err, &dup):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Code:    "DUPLICATE_LINE",
			Message: err.Error(),
			Details: map[string]any{"product_id": dup.ProductID, "index": dup.Index},
		})
	case errors.Is(err, domain.ErrDuplicateLine):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "DUPLICATE_LINE", Message: err.Error()})
	case errors.Is(err, domain.ErrImmutableField):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "IMMUTABLE_FIELD", Message: err.Error()})
	case errors.Is(err, domain.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: err.Error()})
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrDuplicate):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "CONFLICT", Message: err.Error()})
	case errors.As(err, &routing):
		return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{
			Code:    "ROUTING",
			Message: err.Error(),
			Details: map[string]any{"shard_key": routing.ShardKey, "region_code": routing.RegionCode},
		})
	case errors.Is(err, domain.ErrTransaction):
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{Code: "TRANSACTION", Message: "no se pudo completar la transacción, intente de nuevo"})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
}

// ErrorHandler manejador de errores de Fiber para rutas inexistentes y panics recuperados.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(dto.ErrorResponse{Code: "HTTP_ERROR", Message: fe.Message})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
}
