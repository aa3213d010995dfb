package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// DocumentKind tipo de documento de inventario.
type DocumentKind string

const (
	DocumentImport DocumentKind = "import" // entrada de mercancía (suma stock)
	DocumentExport DocumentKind = "export" // salida de mercancía (resta stock)
)

// Valid indica si el tipo es conocido.
func (k DocumentKind) Valid() bool {
	return k == DocumentImport || k == DocumentExport
}

// Sign signo con que una línea de este tipo afecta el stock.
func (k DocumentKind) Sign() int64 {
	if k == DocumentExport {
		return -1
	}
	return 1
}

// Effect movimiento de stock con signo que produce una línea de quantity unidades.
func (k DocumentKind) Effect(quantity int64) int64 {
	return k.Sign() * quantity
}

// Document cabecera de un documento de entrada o salida.
// SupplierID solo aplica a entradas; en salidas queda vacío.
type Document struct {
	ID          string
	Kind        DocumentKind
	WarehouseID string
	SupplierID  string
	Date        time.Time
	Note        string
	Lines       []DocumentLine
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DocumentLine línea de un documento; clave (DocumentID, ProductID).
// UnitValue es costo unitario en entradas y precio unitario en salidas.
type DocumentLine struct {
	DocumentID string
	ProductID  string
	Quantity   int64
	UnitValue  decimal.Decimal
	Note       string
}

// Total valor de la línea.
func (l DocumentLine) Total() decimal.Decimal {
	return l.UnitValue.Mul(decimal.NewFromInt(l.Quantity))
}
