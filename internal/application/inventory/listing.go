package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/jhoicas/kho-shard/internal/domain"
	"github.com/jhoicas/kho-shard/internal/domain/entity"
	"github.com/jhoicas/kho-shard/internal/domain/repository"
	"github.com/jhoicas/kho-shard/internal/shard"
)

// Límites de paginación de los listados.
const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

// ListDocumentsInput filtros del listado de entradas o salidas. Page empieza en 1.
type ListDocumentsInput struct {
	WarehouseID string
	SupplierID  string
	From        time.Time
	To          time.Time
	Search      string
	Page        int
	Limit       int
}

// DocumentList página de documentos con el total sin paginar.
type DocumentList struct {
	Items []entity.Document
	Total int64
	Page  int
	Limit int
}

// StockList página de existencias de una bodega.
type StockList struct {
	Items []entity.StockLevel
	Total int64
	Page  int
	Limit int
}

// normalizePage aplica valores por defecto y devuelve la ventana para el repositorio.
func normalizePage(page, limit int) (int, int, repository.Page) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return page, limit, repository.Page{Limit: limit, Offset: (page - 1) * limit}
}

// ListDocuments lista documentos de un tipo en la conexión elegida por el router.
func (e *DocumentEngine) ListDocuments(ctx context.Context, hint shard.RouteHint, kind entity.DocumentKind, in ListDocumentsInput) (*DocumentList, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("tipo de documento %q: %w", kind, domain.ErrInvalidInput)
	}
	if kind == entity.DocumentExport && in.SupplierID != "" {
		return nil, fmt.Errorf("las salidas no tienen proveedor: %w", domain.ErrInvalidInput)
	}
	if !in.From.IsZero() && !in.To.IsZero() && in.From.After(in.To) {
		return nil, fmt.Errorf("from posterior a to: %w", domain.ErrInvalidInput)
	}
	conn, err := e.router.Resolve(hint)
	if err != nil {
		return nil, err
	}

	page, limit, window := normalizePage(in.Page, in.Limit)
	filter := repository.DocumentFilter{
		WarehouseID: in.WarehouseID,
		SupplierID:  in.SupplierID,
		From:        in.From,
		To:          in.To,
		Search:      in.Search,
		Page:        window,
	}
	out := &DocumentList{Page: page, Limit: limit}
	err = e.runInTx(ctx, conn, func(repos repository.Repositories) error {
		items, total, err := repos.Documents.List(ctx, kind, filter)
		if err != nil {
			return err
		}
		out.Items, out.Total = items, total
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListStock existencias de una bodega (solo productos con movimientos).
func (e *DocumentEngine) ListStock(ctx context.Context, hint shard.RouteHint, warehouseID string, pageNum, limit int) (*StockList, error) {
	if warehouseID == "" {
		return nil, fmt.Errorf("warehouse_id requerido: %w", domain.ErrInvalidInput)
	}
	conn, err := e.router.Resolve(hint)
	if err != nil {
		return nil, err
	}

	page, limit, window := normalizePage(pageNum, limit)
	out := &StockList{Page: page, Limit: limit}
	err = e.runInTx(ctx, conn, func(repos repository.Repositories) error {
		wh, err := repos.Warehouses.GetByID(ctx, warehouseID)
		if err != nil {
			return err
		}
		if wh == nil {
			return &domain.ReferenceNotFoundError{Entity: "warehouse", ID: warehouseID}
		}
		items, total, err := repos.Stock.ListByWarehouse(ctx, warehouseID, window)
		if err != nil {
			return err
		}
		out.Items, out.Total = items, total
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
