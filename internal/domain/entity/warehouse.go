package entity

import "time"

// Warehouse representa una bodega. Queda fijada para siempre al shard de su región.
type Warehouse struct {
	ID        string
	Name      string // único
	Location  string
	RegionID  string
	CreatedAt time.Time
	UpdatedAt time.Time
}
