package entity

import "time"

// StockLevel existencias de un producto en una bodega. Se crea en 0 con el primer movimiento
// y nunca puede quedar negativo.
type StockLevel struct {
	WarehouseID    string
	ProductID      string
	QuantityOnHand int64
	UpdatedAt      time.Time
}
