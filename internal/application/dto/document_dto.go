package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// DocumentLineRequest línea de un documento. unit_value es costo en entradas y precio en salidas.
type DocumentLineRequest struct {
	ProductID string          `json:"product_id"`
	Quantity  int64           `json:"quantity"`
	UnitValue decimal.Decimal `json:"unit_value"`
	Note      string          `json:"note,omitempty"`
}

// CreateDocumentRequest body para POST /api/imports y POST /api/exports.
type CreateDocumentRequest struct {
	WarehouseID string                `json:"warehouse_id"`
	SupplierID  string                `json:"supplier_id,omitempty"` // solo entradas
	Date        string                `json:"date,omitempty"`        // YYYY-MM-DD; hoy si se omite
	Note        string                `json:"note,omitempty"`
	Lines       []DocumentLineRequest `json:"lines"`
}

// UpdateDocumentRequest body para PUT. Bodega y proveedor, si vienen, deben coincidir con los guardados.
type UpdateDocumentRequest struct {
	WarehouseID string                `json:"warehouse_id,omitempty"`
	SupplierID  string                `json:"supplier_id,omitempty"`
	Date        string                `json:"date,omitempty"`
	Note        *string               `json:"note,omitempty"`
	Lines       []DocumentLineRequest `json:"lines"`
}

// CreatedResponse id del documento creado.
type CreatedResponse struct {
	ID string `json:"id"`
}

// DocumentLineResponse salida de una línea.
type DocumentLineResponse struct {
	ProductID string          `json:"product_id"`
	Quantity  int64           `json:"quantity"`
	UnitValue decimal.Decimal `json:"unit_value"`
	Total     decimal.Decimal `json:"total"`
	Note      string          `json:"note,omitempty"`
}

// DocumentResponse salida de un documento con sus líneas.
type DocumentResponse struct {
	ID          string                 `json:"id"`
	Kind        string                 `json:"kind"`
	WarehouseID string                 `json:"warehouse_id"`
	SupplierID  string                 `json:"supplier_id,omitempty"`
	Date        string                 `json:"date"`
	Note        string                 `json:"note"`
	Lines       []DocumentLineResponse `json:"lines"`
	Total       decimal.Decimal        `json:"total"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

// StockLevelResponse existencias de un producto en una bodega.
type StockLevelResponse struct {
	WarehouseID    string     `json:"warehouse_id"`
	ProductID      string     `json:"product_id"`
	QuantityOnHand int64      `json:"quantity_on_hand"`
	UpdatedAt      *time.Time `json:"updated_at,omitempty"`
}

// ListDocumentsQuery query string de GET /api/imports y GET /api/exports.
// from y to en YYYY-MM-DD (inclusivos).
type ListDocumentsQuery struct {
	WarehouseID string `query:"warehouse_id"`
	SupplierID  string `query:"supplier_id"`
	From        string `query:"from"`
	To          string `query:"to"`
	Search      string `query:"search"`
	Page        int    `query:"page"`
	Limit       int    `query:"limit"`
}

// DocumentListResponse página de documentos.
type DocumentListResponse struct {
	Data       []DocumentResponse `json:"data"`
	Pagination PageResponse       `json:"pagination"`
}

// StockListResponse página de existencias de una bodega.
type StockListResponse struct {
	Data       []StockLevelResponse `json:"data"`
	Pagination PageResponse         `json:"pagination"`
}
