package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product representa un producto del catálogo. Se replica con la misma clave en master y en cada shard.
type Product struct {
	ID          string
	SupplierID  string
	Name        string
	Description string
	Unit        string
	Price       decimal.Decimal // precio de referencia
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
