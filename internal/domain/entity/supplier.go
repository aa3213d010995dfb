package entity

import "time"

// Supplier proveedor de mercancía (contraparte de los documentos de entrada).
type Supplier struct {
	ID        string
	Name      string
	Address   string
	Phone     string
	Email     string
	CreatedAt time.Time
	UpdatedAt time.Time
}
