package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jhoicas/kho-shard/internal/domain"
	"github.com/jhoicas/kho-shard/internal/domain/entity"
	"github.com/jhoicas/kho-shard/internal/domain/repository"
	"github.com/jhoicas/kho-shard/internal/shard"
	"github.com/jhoicas/kho-shard/pkg/config"
	"github.com/rs/zerolog"
)

// DocumentEngine crea, edita y elimina documentos de entrada/salida junto con el movimiento de
// existencias que producen, todo en una sola transacción sobre la conexión que elige el router.
type DocumentEngine struct {
	router   Resolver
	notifier Notifier
	metrics  Metrics
	log      zerolog.Logger
	attempts int
	backoff  time.Duration
	now      func() time.Time
}

// NewDocumentEngine construye el motor. notifier y metrics pueden ser nil.
func NewDocumentEngine(router Resolver, notifier Notifier, metrics Metrics, log zerolog.Logger, cfg config.EngineConfig) *DocumentEngine {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	attempts := cfg.TxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return &DocumentEngine{
		router:   router,
		notifier: notifier,
		metrics:  metrics,
		log:      log,
		attempts: attempts,
		backoff:  cfg.TxBackoff,
		now:      time.Now,
	}
}

// CreateImport registra una entrada de mercancía y suma las existencias.
func (e *DocumentEngine) CreateImport(ctx context.Context, hint shard.RouteHint, in CreateDocumentInput) (string, error) {
	return e.create(ctx, hint, entity.DocumentImport, in)
}

// CreateExport registra una salida; se rechaza completa si alguna línea supera el disponible.
func (e *DocumentEngine) CreateExport(ctx context.Context, hint shard.RouteHint, in CreateDocumentInput) (string, error) {
	return e.create(ctx, hint, entity.DocumentExport, in)
}

// UpdateImport edita fecha, nota y líneas de una entrada.
func (e *DocumentEngine) UpdateImport(ctx context.Context, hint shard.RouteHint, in UpdateDocumentInput) error {
	return e.update(ctx, hint, entity.DocumentImport, in)
}

// UpdateExport edita fecha, nota y líneas de una salida.
func (e *DocumentEngine) UpdateExport(ctx context.Context, hint shard.RouteHint, in UpdateDocumentInput) error {
	return e.update(ctx, hint, entity.DocumentExport, in)
}

// DeleteImport elimina una entrada descontando sus cantidades.
func (e *DocumentEngine) DeleteImport(ctx context.Context, hint shard.RouteHint, id string) error {
	return e.delete(ctx, hint, entity.DocumentImport, id)
}

// DeleteExport elimina una salida devolviendo sus cantidades al stock.
func (e *DocumentEngine) DeleteExport(ctx context.Context, hint shard.RouteHint, id string) error {
	return e.delete(ctx, hint, entity.DocumentExport, id)
}

func (e *DocumentEngine) create(ctx context.Context, hint shard.RouteHint, kind entity.DocumentKind, in CreateDocumentInput) (string, error) {
	if err := validateCreate(kind, in); err != nil {
		return "", e.finish(kind, entity.OpCreated, "", err)
	}
	conn, err := e.router.Resolve(hint)
	if err != nil {
		return "", e.finish(kind, entity.OpCreated, "", err)
	}

	now := e.now()
	id := uuid.New().String()
	date := in.Date
	if date.IsZero() {
		date = now
	}

	var ev entity.InventoryEvent
	err = e.runInTx(ctx, conn, func(repos repository.Repositories) error {
		wh, err := e.resolveWarehouse(ctx, repos, conn, in.WarehouseID)
		if err != nil {
			return err
		}
		if kind == entity.DocumentImport {
			s, err := repos.Suppliers.GetByID(ctx, in.SupplierID)
			if err != nil {
				return err
			}
			if s == nil {
				return &domain.ReferenceNotFoundError{Entity: "supplier", ID: in.SupplierID}
			}
		}

		lines := toLines(id, in.Lines)
		if err := checkProducts(ctx, repos, productIDs(lines)); err != nil {
			return err
		}
		if kind == entity.DocumentExport {
			if err := checkAvailable(ctx, repos, wh.ID, lines); err != nil {
				return err
			}
		}

		doc := &entity.Document{
			ID:          id,
			Kind:        kind,
			WarehouseID: wh.ID,
			SupplierID:  in.SupplierID,
			Date:        date,
			Note:        in.Note,
			Lines:       lines,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := repos.Documents.Create(ctx, doc); err != nil {
			return err
		}
		changes, err := applyStock(ctx, repos, wh.ID, applyDeltas(kind, lines))
		if err != nil {
			return err
		}
		ev = newEvent(kind, entity.OpCreated, wh, conn, id, changes, now)
		return nil
	})
	if err != nil {
		return "", e.finish(kind, entity.OpCreated, conn.Key, err)
	}
	e.finish(kind, entity.OpCreated, conn.Key, nil)
	e.notifier.Notify(context.WithoutCancel(ctx), ev)
	return id, nil
}

func (e *DocumentEngine) update(ctx context.Context, hint shard.RouteHint, kind entity.DocumentKind, in UpdateDocumentInput) error {
	if err := validateUpdate(kind, in); err != nil {
		return e.finish(kind, entity.OpUpdated, "", err)
	}
	conn, err := e.router.Resolve(hint)
	if err != nil {
		return e.finish(kind, entity.OpUpdated, "", err)
	}

	now := e.now()
	var ev entity.InventoryEvent
	err = e.runInTx(ctx, conn, func(repos repository.Repositories) error {
		stored, err := repos.Documents.GetForUpdate(ctx, kind, in.ID)
		if err != nil {
			return err
		}
		if stored == nil {
			return fmt.Errorf("%s %q: %w", kind, in.ID, domain.ErrNotFound)
		}
		if err := checkImmutable(stored, in); err != nil {
			return err
		}

		diff := diffLines(kind, stored.ID, stored.Lines, in.Lines)
		if err := checkProducts(ctx, repos, productIDs(diff.Added)); err != nil {
			return err
		}
		changes, err := applyStock(ctx, repos, stored.WarehouseID, diff.Deltas)
		if err != nil {
			return err
		}

		for _, l := range diff.Removed {
			if err := repos.Documents.DeleteLine(ctx, kind, stored.ID, l.ProductID); err != nil {
				return err
			}
		}
		for _, l := range diff.Changed {
			if err := repos.Documents.UpdateLine(ctx, kind, l); err != nil {
				return err
			}
		}
		if len(diff.Added) > 0 {
			if err := repos.Documents.InsertLines(ctx, kind, diff.Added); err != nil {
				return err
			}
		}

		date, note := stored.Date, stored.Note
		if !in.Date.IsZero() {
			date = in.Date
		}
		if in.Note != nil {
			note = *in.Note
		}
		if err := repos.Documents.UpdateHeader(ctx, kind, stored.ID, date, note); err != nil {
			return err
		}

		wh, err := repos.Warehouses.GetByID(ctx, stored.WarehouseID)
		if err != nil {
			return err
		}
		ev = newEvent(kind, entity.OpUpdated, warehouseOrID(wh, stored.WarehouseID), conn, stored.ID, changes, now)
		return nil
	})
	if err != nil {
		return e.finish(kind, entity.OpUpdated, conn.Key, err)
	}
	e.finish(kind, entity.OpUpdated, conn.Key, nil)
	e.notifier.Notify(context.WithoutCancel(ctx), ev)
	return nil
}

func (e *DocumentEngine) delete(ctx context.Context, hint shard.RouteHint, kind entity.DocumentKind, id string) error {
	if !kind.Valid() || id == "" {
		return e.finish(kind, entity.OpDeleted, "", fmt.Errorf("id requerido: %w", domain.ErrInvalidInput))
	}
	conn, err := e.router.Resolve(hint)
	if err != nil {
		return e.finish(kind, entity.OpDeleted, "", err)
	}

	now := e.now()
	var ev entity.InventoryEvent
	err = e.runInTx(ctx, conn, func(repos repository.Repositories) error {
		stored, err := repos.Documents.GetForUpdate(ctx, kind, id)
		if err != nil {
			return err
		}
		if stored == nil {
			return fmt.Errorf("%s %q: %w", kind, id, domain.ErrNotFound)
		}
		changes, err := applyStock(ctx, repos, stored.WarehouseID, reverseDeltas(kind, stored.Lines))
		if err != nil {
			return err
		}
		if err := repos.Documents.Delete(ctx, kind, stored.ID); err != nil {
			return err
		}
		wh, err := repos.Warehouses.GetByID(ctx, stored.WarehouseID)
		if err != nil {
			return err
		}
		ev = newEvent(kind, entity.OpDeleted, warehouseOrID(wh, stored.WarehouseID), conn, stored.ID, changes, now)
		return nil
	})
	if err != nil {
		return e.finish(kind, entity.OpDeleted, conn.Key, err)
	}
	e.finish(kind, entity.OpDeleted, conn.Key, nil)
	e.notifier.Notify(context.WithoutCancel(ctx), ev)
	return nil
}

// GetDocument devuelve cabecera y líneas de un documento de la conexión elegida.
func (e *DocumentEngine) GetDocument(ctx context.Context, hint shard.RouteHint, kind entity.DocumentKind, id string) (*entity.Document, error) {
	if !kind.Valid() || id == "" {
		return nil, fmt.Errorf("id requerido: %w", domain.ErrInvalidInput)
	}
	conn, err := e.router.Resolve(hint)
	if err != nil {
		return nil, err
	}
	var doc *entity.Document
	err = e.runInTx(ctx, conn, func(repos repository.Repositories) error {
		d, err := repos.Documents.GetByID(ctx, kind, id)
		if err != nil {
			return err
		}
		if d == nil {
			return fmt.Errorf("%s %q: %w", kind, id, domain.ErrNotFound)
		}
		doc = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// GetStockLevel existencias de un producto en una bodega (0 si nunca tuvo movimientos).
func (e *DocumentEngine) GetStockLevel(ctx context.Context, hint shard.RouteHint, warehouseID, productID string) (*entity.StockLevel, error) {
	if warehouseID == "" || productID == "" {
		return nil, fmt.Errorf("warehouse_id y product_id requeridos: %w", domain.ErrInvalidInput)
	}
	conn, err := e.router.Resolve(hint)
	if err != nil {
		return nil, err
	}
	var level *entity.StockLevel
	err = e.runInTx(ctx, conn, func(repos repository.Repositories) error {
		wh, err := repos.Warehouses.GetByID(ctx, warehouseID)
		if err != nil {
			return err
		}
		if wh == nil {
			return &domain.ReferenceNotFoundError{Entity: "warehouse", ID: warehouseID}
		}
		level, err = repos.Stock.Get(ctx, warehouseID, productID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return level, nil
}

// runInTx ejecuta fn en una transacción de conn y reintenta solo los *domain.TransactionError,
// con espera lineal entre intentos. fn debe poder repetirse.
func (e *DocumentEngine) runInTx(ctx context.Context, conn *shard.Connection, fn func(repos repository.Repositories) error) error {
	for attempt := 1; ; attempt++ {
		err := conn.Store.RunInTx(ctx, fn)
		if err == nil || !domain.IsRetryable(err) || attempt >= e.attempts {
			return err
		}
		e.metrics.TxRetry()
		e.log.Warn().Err(err).Str("shard", conn.Key).Int("attempt", attempt).Msg("transacción fallida, reintentando")

		wait := e.backoff * time.Duration(attempt)
		if wait <= 0 {
			continue
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
}

// resolveWarehouse verifica que la bodega exista en la conexión y que esa conexión sea la dueña
// de su región.
func (e *DocumentEngine) resolveWarehouse(ctx context.Context, repos repository.Repositories, conn *shard.Connection, id string) (*entity.Warehouse, error) {
	wh, err := repos.Warehouses.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if wh == nil {
		return nil, &domain.ReferenceNotFoundError{Entity: "warehouse", ID: id}
	}
	if home := e.router.HomeOf(wh.RegionID); home != conn.Key {
		return nil, fmt.Errorf("bodega %q (región %q) pertenece a %q, no a %q: %w",
			wh.ID, wh.RegionID, home, conn.Key, domain.ErrConflict)
	}
	return wh, nil
}

// finish registra métricas y log del resultado y devuelve err sin modificar.
func (e *DocumentEngine) finish(kind entity.DocumentKind, op, shardKey string, err error) error {
	if err == nil {
		e.metrics.DocumentOperation(kind, op, OutcomeOK)
		return nil
	}
	if isRejection(err) {
		e.metrics.DocumentOperation(kind, op, OutcomeRejected)
		if errors.Is(err, domain.ErrInsufficientStock) {
			e.metrics.StockRejection(kind)
		}
		e.log.Info().Err(err).Str("kind", string(kind)).Str("op", op).Str("shard", shardKey).Msg("operación rechazada")
		return err
	}
	e.metrics.DocumentOperation(kind, op, OutcomeError)
	e.log.Error().Err(err).Str("kind", string(kind)).Str("op", op).Str("shard", shardKey).Msg("operación fallida")
	return err
}

// isRejection errores causados por la entrada o el estado, no por la infraestructura.
func isRejection(err error) bool {
	for _, target := range []error{
		domain.ErrInvalidInput,
		domain.ErrNotFound,
		domain.ErrDuplicate,
		domain.ErrDuplicateLine,
		domain.ErrReferenceNotFound,
		domain.ErrInsufficientStock,
		domain.ErrImmutableField,
		domain.ErrConflict,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func checkProducts(ctx context.Context, repos repository.Repositories, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	missing, err := repos.Products.MissingIDs(ctx, ids)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return &domain.ReferenceNotFoundError{Entity: "product", ID: missing[0]}
	}
	return nil
}

// checkAvailable rechaza la salida completa si alguna línea supera el disponible.
func checkAvailable(ctx context.Context, repos repository.Repositories, warehouseID string, lines []entity.DocumentLine) error {
	for _, l := range lines {
		s, err := repos.Stock.Get(ctx, warehouseID, l.ProductID)
		if err != nil {
			return err
		}
		if l.Quantity > s.QuantityOnHand {
			return domain.NewInsufficientStock(warehouseID, l.ProductID, -l.Quantity, s.QuantityOnHand)
		}
	}
	return nil
}

// applyStock aplica cada delta con la actualización condicional del repositorio.
func applyStock(ctx context.Context, repos repository.Repositories, warehouseID string, deltas []stockDelta) ([]entity.StockChange, error) {
	changes := make([]entity.StockChange, 0, len(deltas))
	for _, d := range deltas {
		qty, err := repos.Stock.Apply(ctx, warehouseID, d.ProductID, d.Delta)
		if err != nil {
			return nil, err
		}
		changes = append(changes, entity.StockChange{ProductID: d.ProductID, Delta: d.Delta, QuantityOnHand: qty})
	}
	return changes, nil
}

func warehouseOrID(wh *entity.Warehouse, id string) *entity.Warehouse {
	if wh != nil {
		return wh
	}
	return &entity.Warehouse{ID: id}
}

func newEvent(kind entity.DocumentKind, op string, wh *entity.Warehouse, conn *shard.Connection, documentID string, changes []entity.StockChange, now time.Time) entity.InventoryEvent {
	return entity.InventoryEvent{
		Kind:        entity.EventKindFor(kind, op),
		Region:      wh.RegionID,
		WarehouseID: wh.ID,
		Payload: entity.EventPayload{
			DocumentID: documentID,
			Shard:      conn.Key,
			Changes:    changes,
		},
		OccurredAt: now,
	}
}
