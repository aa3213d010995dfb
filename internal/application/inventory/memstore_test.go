package inventory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jhoicas/kho-shard/internal/domain"
	"github.com/jhoicas/kho-shard/internal/domain/entity"
	"github.com/jhoicas/kho-shard/internal/domain/repository"
)

// memStore Store en memoria: cada RunInTx trabaja sobre una copia del estado y solo la publica
// si fn no falla, igual que commit/rollback. El mutex serializa las transacciones.
type memStore struct {
	mu     sync.Mutex
	state  *memState
	failTx []error // errores a devolver antes de ejecutar fn, uno por llamada
	calls  int
	// beforeApply corre dentro de Apply, justo antes de la actualización condicional, sobre el
	// estado de la tx. Simula otra transacción que confirmó entre la lectura y la escritura.
	beforeApply func(st *memState, k stockKey)
}

type docKey struct {
	kind entity.DocumentKind
	id   string
}

type stockKey struct {
	warehouse string
	product   string
}

type memState struct {
	warehouses map[string]entity.Warehouse
	suppliers  map[string]entity.Supplier
	products   map[string]entity.Product
	docs       map[docKey]entity.Document
	stock      map[stockKey]int64
}

func newMemStore() *memStore {
	return &memStore{state: &memState{
		warehouses: map[string]entity.Warehouse{},
		suppliers:  map[string]entity.Supplier{},
		products:   map[string]entity.Product{},
		docs:       map[docKey]entity.Document{},
		stock:      map[stockKey]int64{},
	}}
}

func (s *memStore) RunInTx(_ context.Context, fn func(repos repository.Repositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.failTx) > 0 {
		err := s.failTx[0]
		s.failTx = s.failTx[1:]
		if err != nil {
			return err
		}
	}
	work := s.state.clone()
	repos := repository.Repositories{
		Warehouses: memWarehouses{work},
		Products:   memProducts{work},
		Suppliers:  memSuppliers{work},
		Documents:  memDocuments{work},
		Stock:      memStock{st: work, owner: s},
	}
	if err := fn(repos); err != nil {
		return err
	}
	s.state = work
	return nil
}

func (s *memStore) Ping(context.Context) error { return nil }
func (s *memStore) Close()                     {}

// snapshot copia del estado confirmado.
func (s *memStore) snapshot() *memState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

func (s *memStore) stockOf(warehouse, product string) int64 {
	return s.snapshot().stock[stockKey{warehouse, product}]
}

func (s *memStore) seedWarehouse(id, region string) {
	s.state.warehouses[id] = entity.Warehouse{ID: id, Name: "Kho " + id, RegionID: region}
}

func (s *memStore) seedSupplier(id string) {
	s.state.suppliers[id] = entity.Supplier{ID: id, Name: "NCC " + id}
}

func (s *memStore) seedProduct(ids ...string) {
	for _, id := range ids {
		s.state.products[id] = entity.Product{ID: id, Name: "SP " + id}
	}
}

func (m *memState) clone() *memState {
	c := &memState{
		warehouses: make(map[string]entity.Warehouse, len(m.warehouses)),
		suppliers:  make(map[string]entity.Supplier, len(m.suppliers)),
		products:   make(map[string]entity.Product, len(m.products)),
		docs:       make(map[docKey]entity.Document, len(m.docs)),
		stock:      make(map[stockKey]int64, len(m.stock)),
	}
	for k, v := range m.warehouses {
		c.warehouses[k] = v
	}
	for k, v := range m.suppliers {
		c.suppliers[k] = v
	}
	for k, v := range m.products {
		c.products[k] = v
	}
	for k, v := range m.docs {
		c.docs[k] = copyDoc(v)
	}
	for k, v := range m.stock {
		c.stock[k] = v
	}
	return c
}

func copyDoc(d entity.Document) entity.Document {
	d.Lines = append([]entity.DocumentLine(nil), d.Lines...)
	return d
}

// --- repositorios ---

type memWarehouses struct{ st *memState }

func (r memWarehouses) GetByID(_ context.Context, id string) (*entity.Warehouse, error) {
	w, ok := r.st.warehouses[id]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

type memSuppliers struct{ st *memState }

func (r memSuppliers) GetByID(_ context.Context, id string) (*entity.Supplier, error) {
	s, ok := r.st.suppliers[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

type memProducts struct{ st *memState }

func (r memProducts) GetByID(_ context.Context, id string) (*entity.Product, error) {
	p, ok := r.st.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r memProducts) MissingIDs(_ context.Context, ids []string) ([]string, error) {
	var missing []string
	for _, id := range ids {
		if _, ok := r.st.products[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

type memDocuments struct{ st *memState }

func (r memDocuments) Create(_ context.Context, doc *entity.Document) error {
	k := docKey{doc.Kind, doc.ID}
	if _, ok := r.st.docs[k]; ok {
		return domain.ErrDuplicate
	}
	stored := copyDoc(*doc)
	stored.Lines = nil
	r.st.docs[k] = stored
	return r.InsertLines(context.Background(), doc.Kind, doc.Lines)
}

func (r memDocuments) GetForUpdate(ctx context.Context, kind entity.DocumentKind, id string) (*entity.Document, error) {
	return r.GetByID(ctx, kind, id)
}

func (r memDocuments) GetByID(_ context.Context, kind entity.DocumentKind, id string) (*entity.Document, error) {
	d, ok := r.st.docs[docKey{kind, id}]
	if !ok {
		return nil, nil
	}
	c := copyDoc(d)
	return &c, nil
}

func (r memDocuments) UpdateHeader(_ context.Context, kind entity.DocumentKind, id string, date time.Time, note string) error {
	k := docKey{kind, id}
	d, ok := r.st.docs[k]
	if !ok {
		return domain.ErrNotFound
	}
	d.Date, d.Note = date, note
	r.st.docs[k] = d
	return nil
}

func (r memDocuments) InsertLines(_ context.Context, kind entity.DocumentKind, lines []entity.DocumentLine) error {
	for _, l := range lines {
		k := docKey{kind, l.DocumentID}
		d, ok := r.st.docs[k]
		if !ok {
			return domain.ErrNotFound
		}
		for _, existing := range d.Lines {
			if existing.ProductID == l.ProductID {
				return domain.ErrDuplicateLine
			}
		}
		d.Lines = append(d.Lines, l)
		r.st.docs[k] = d
	}
	return nil
}

func (r memDocuments) UpdateLine(_ context.Context, kind entity.DocumentKind, line entity.DocumentLine) error {
	k := docKey{kind, line.DocumentID}
	d, ok := r.st.docs[k]
	if !ok {
		return domain.ErrNotFound
	}
	for i := range d.Lines {
		if d.Lines[i].ProductID == line.ProductID {
			d.Lines[i] = line
			r.st.docs[k] = d
			return nil
		}
	}
	return domain.ErrNotFound
}

func (r memDocuments) DeleteLine(_ context.Context, kind entity.DocumentKind, documentID, productID string) error {
	k := docKey{kind, documentID}
	d := r.st.docs[k]
	kept := d.Lines[:0]
	for _, l := range d.Lines {
		if l.ProductID != productID {
			kept = append(kept, l)
		}
	}
	d.Lines = kept
	r.st.docs[k] = d
	return nil
}

func (r memDocuments) Delete(_ context.Context, kind entity.DocumentKind, id string) error {
	k := docKey{kind, id}
	if _, ok := r.st.docs[k]; !ok {
		return domain.ErrNotFound
	}
	delete(r.st.docs, k)
	return nil
}

func (r memDocuments) List(_ context.Context, kind entity.DocumentKind, f repository.DocumentFilter) ([]entity.Document, int64, error) {
	var all []entity.Document
	for k, d := range r.st.docs {
		switch {
		case k.kind != kind:
		case f.WarehouseID != "" && d.WarehouseID != f.WarehouseID:
		case kind == entity.DocumentImport && f.SupplierID != "" && d.SupplierID != f.SupplierID:
		case !f.From.IsZero() && d.Date.Before(f.From):
		case !f.To.IsZero() && d.Date.After(f.To):
		case f.Search != "" && !strings.Contains(strings.ToLower(d.Note), strings.ToLower(f.Search)):
		default:
			all = append(all, copyDoc(d))
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].Date.Equal(all[j].Date) {
			return all[i].Date.After(all[j].Date)
		}
		return all[i].ID > all[j].ID
	})
	return paginate(all, f.Page), int64(len(all)), nil
}

func paginate[T any](items []T, p repository.Page) []T {
	out := []T{}
	if p.Offset >= len(items) {
		return out
	}
	end := len(items)
	if p.Limit > 0 && p.Offset+p.Limit < end {
		end = p.Offset + p.Limit
	}
	return append(out, items[p.Offset:end]...)
}

type memStock struct {
	st    *memState
	owner *memStore
}

func (r memStock) Get(_ context.Context, warehouseID, productID string) (*entity.StockLevel, error) {
	return &entity.StockLevel{
		WarehouseID:    warehouseID,
		ProductID:      productID,
		QuantityOnHand: r.st.stock[stockKey{warehouseID, productID}],
	}, nil
}

func (r memStock) Apply(_ context.Context, warehouseID, productID string, delta int64) (int64, error) {
	k := stockKey{warehouseID, productID}
	current := r.st.stock[k]
	if delta > 0 && current > math.MaxInt64-delta {
		return 0, fmt.Errorf("apply stock %s/%s: cantidad fuera de rango: %w", warehouseID, productID, domain.ErrInvalidInput)
	}
	if r.owner != nil && r.owner.beforeApply != nil {
		r.owner.beforeApply(r.st, k)
		current = r.st.stock[k]
	}
	if current+delta < 0 {
		return 0, domain.NewInsufficientStock(warehouseID, productID, delta, current)
	}
	r.st.stock[k] = current + delta
	return current + delta, nil
}

func (r memStock) ListByWarehouse(_ context.Context, warehouseID string, page repository.Page) ([]entity.StockLevel, int64, error) {
	var all []entity.StockLevel
	for k, qty := range r.st.stock {
		if k.warehouse == warehouseID {
			all = append(all, entity.StockLevel{WarehouseID: k.warehouse, ProductID: k.product, QuantityOnHand: qty})
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ProductID < all[j].ProductID })
	return paginate(all, page), int64(len(all)), nil
}
