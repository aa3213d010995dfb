package postgres

import (
	"context"

	"github.com/jhoicas/kho-shard/internal/domain"
	"github.com/jhoicas/kho-shard/internal/domain/repository"
)

// Ensure Store implements repository.Store.
var _ repository.Store = (*Store)(nil)

// Store una conexión física (master o shard) con los repositorios enlazados.
// El mismo enlace se aplica a todas las conexiones; solo cambia el pool.
type Store struct {
	name string
	pool Pool
}

// NewStore construye el store sobre un pool ya creado.
func NewStore(name string, pool Pool) *Store {
	return &Store{name: name, pool: pool}
}

// Name clave de la conexión (master, shard1, ...).
func (s *Store) Name() string { return s.name }

// BindRepositories ata el conjunto uniforme de repositorios a un Querier (pool o tx).
func BindRepositories(q Querier) repository.Repositories {
	return repository.Repositories{
		Warehouses: NewWarehouseRepository(q),
		Products:   NewProductRepository(q),
		Suppliers:  NewSupplierRepository(q),
		Documents:  NewDocumentRepository(q),
		Stock:      NewStockRepository(q),
	}
}

// RunInTx inicia una transacción, ejecuta fn con repos atados a la tx y hace Commit o Rollback.
// Los errores de begin/commit y de serialización se devuelven como *domain.TransactionError.
func (s *Store) RunInTx(ctx context.Context, fn func(repos repository.Repositories) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return &domain.TransactionError{Op: "begin " + s.name, Err: err}
	}
	// Rollback aunque el ctx del caller ya esté cancelado.
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	if err := fn(BindRepositories(tx)); err != nil {
		return classifyTxError(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return &domain.TransactionError{Op: "commit " + s.name, Err: classifyTxError(err)}
	}
	return nil
}

// Ping comprueba la conexión.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close cierra el pool.
func (s *Store) Close() {
	s.pool.Close()
}
