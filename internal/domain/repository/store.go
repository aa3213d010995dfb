package repository

import "context"

// Repositories conjunto de repositorios atados a una misma transacción/conexión.
// El esquema es idéntico en master y en cada shard; solo cambia la conexión.
type Repositories struct {
	Warehouses WarehouseRepository
	Products   ProductRepository
	Suppliers  SupplierRepository
	Documents  DocumentRepository
	Stock      StockRepository
}

// Store una base de datos física (master o shard) con el esquema enlazado.
type Store interface {
	// RunInTx ejecuta fn dentro de una transacción; Commit si fn no falla, Rollback en otro caso.
	RunInTx(ctx context.Context, fn func(repos Repositories) error) error
	Ping(ctx context.Context) error
	Close()
}
