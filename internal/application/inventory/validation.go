package inventory

import (
	"fmt"
	"sort"
	"time"

	"github.com/jhoicas/kho-shard/internal/domain"
	"github.com/jhoicas/kho-shard/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// LineInput línea enviada por el cliente. UnitValue es costo en entradas y precio en salidas.
type LineInput struct {
	ProductID string
	Quantity  int64
	UnitValue decimal.Decimal
	Note      string
}

// CreateDocumentInput entrada para crear un documento. SupplierID solo aplica a entradas.
type CreateDocumentInput struct {
	WarehouseID string
	SupplierID  string
	Date        time.Time
	Note        string
	Lines       []LineInput
}

// UpdateDocumentInput entrada para editar un documento.
// WarehouseID y SupplierID son opcionales: si vienen deben coincidir con los guardados.
// Date cero y Note nil conservan los valores actuales.
type UpdateDocumentInput struct {
	ID          string
	WarehouseID string
	SupplierID  string
	Date        time.Time
	Note        *string
	Lines       []LineInput
}

// MaxLineQuantity cantidad máxima por línea; mantiene las sumas de existencias dentro de BIGINT.
const MaxLineQuantity int64 = 1_000_000_000

// validateLines verifica cantidades, valores y productos repetidos.
func validateLines(lines []LineInput) error {
	if len(lines) == 0 {
		return fmt.Errorf("el documento requiere al menos una línea: %w", domain.ErrInvalidInput)
	}
	seen := make(map[string]bool, len(lines))
	for i, l := range lines {
		if l.ProductID == "" {
			return fmt.Errorf("línea %d sin producto: %w", i, domain.ErrInvalidInput)
		}
		if l.Quantity <= 0 {
			return fmt.Errorf("línea %d: cantidad debe ser mayor a 0: %w", i, domain.ErrInvalidInput)
		}
		if l.Quantity > MaxLineQuantity {
			return fmt.Errorf("línea %d: cantidad supera el máximo %d: %w", i, MaxLineQuantity, domain.ErrInvalidInput)
		}
		if l.UnitValue.IsNegative() {
			return fmt.Errorf("línea %d: valor unitario negativo: %w", i, domain.ErrInvalidInput)
		}
		if seen[l.ProductID] {
			return &domain.DuplicateLineError{ProductID: l.ProductID, Index: i}
		}
		seen[l.ProductID] = true
	}
	return nil
}

func validateCreate(kind entity.DocumentKind, in CreateDocumentInput) error {
	if in.WarehouseID == "" {
		return fmt.Errorf("warehouse_id requerido: %w", domain.ErrInvalidInput)
	}
	switch kind {
	case entity.DocumentImport:
		if in.SupplierID == "" {
			return fmt.Errorf("supplier_id requerido: %w", domain.ErrInvalidInput)
		}
	case entity.DocumentExport:
		if in.SupplierID != "" {
			return fmt.Errorf("una salida no lleva proveedor: %w", domain.ErrInvalidInput)
		}
	default:
		return fmt.Errorf("tipo de documento %q: %w", kind, domain.ErrInvalidInput)
	}
	return validateLines(in.Lines)
}

func validateUpdate(kind entity.DocumentKind, in UpdateDocumentInput) error {
	if !kind.Valid() {
		return fmt.Errorf("tipo de documento %q: %w", kind, domain.ErrInvalidInput)
	}
	if in.ID == "" {
		return fmt.Errorf("id requerido: %w", domain.ErrInvalidInput)
	}
	return validateLines(in.Lines)
}

// checkImmutable rechaza cambios de bodega o proveedor.
func checkImmutable(stored *entity.Document, in UpdateDocumentInput) error {
	if in.WarehouseID != "" && in.WarehouseID != stored.WarehouseID {
		return fmt.Errorf("bodega %q -> %q: %w", stored.WarehouseID, in.WarehouseID, domain.ErrImmutableField)
	}
	if in.SupplierID != "" && in.SupplierID != stored.SupplierID {
		return fmt.Errorf("proveedor %q -> %q: %w", stored.SupplierID, in.SupplierID, domain.ErrImmutableField)
	}
	return nil
}

func toLines(documentID string, in []LineInput) []entity.DocumentLine {
	out := make([]entity.DocumentLine, len(in))
	for i, l := range in {
		out[i] = entity.DocumentLine{
			DocumentID: documentID,
			ProductID:  l.ProductID,
			Quantity:   l.Quantity,
			UnitValue:  l.UnitValue,
			Note:       l.Note,
		}
	}
	return out
}

func productIDs(lines []entity.DocumentLine) []string {
	ids := make([]string, len(lines))
	for i, l := range lines {
		ids[i] = l.ProductID
	}
	return ids
}

// stockDelta movimiento con signo pendiente de aplicar a un producto.
type stockDelta struct {
	ProductID string
	Delta     int64
}

// lineDiff resultado de comparar líneas guardadas con las enviadas, por producto.
type lineDiff struct {
	Removed []entity.DocumentLine // líneas guardadas que ya no vienen
	Changed []entity.DocumentLine // líneas que siguen, con los valores nuevos
	Added   []entity.DocumentLine
	Deltas  []stockDelta // efecto neto por producto, ordenado por producto y sin ceros
}

// diffLines compara por producto. El delta de cada producto es Effect(nuevo) - Effect(anterior).
func diffLines(kind entity.DocumentKind, documentID string, stored []entity.DocumentLine, submitted []LineInput) lineDiff {
	old := make(map[string]entity.DocumentLine, len(stored))
	for _, l := range stored {
		old[l.ProductID] = l
	}

	var d lineDiff
	net := make(map[string]int64, len(stored)+len(submitted))
	kept := make(map[string]bool, len(submitted))
	for _, nl := range toLines(documentID, submitted) {
		kept[nl.ProductID] = true
		if prev, ok := old[nl.ProductID]; ok {
			d.Changed = append(d.Changed, nl)
			net[nl.ProductID] = kind.Effect(nl.Quantity) - kind.Effect(prev.Quantity)
			continue
		}
		d.Added = append(d.Added, nl)
		net[nl.ProductID] = kind.Effect(nl.Quantity)
	}
	for _, l := range stored {
		if !kept[l.ProductID] {
			d.Removed = append(d.Removed, l)
			net[l.ProductID] = -kind.Effect(l.Quantity)
		}
	}
	d.Deltas = sortedDeltas(net)
	return d
}

// reverseDeltas deshace el efecto de todas las líneas (borrado de documento).
func reverseDeltas(kind entity.DocumentKind, lines []entity.DocumentLine) []stockDelta {
	net := make(map[string]int64, len(lines))
	for _, l := range lines {
		net[l.ProductID] -= kind.Effect(l.Quantity)
	}
	return sortedDeltas(net)
}

// applyDeltas efecto de líneas nuevas (alta de documento).
func applyDeltas(kind entity.DocumentKind, lines []entity.DocumentLine) []stockDelta {
	net := make(map[string]int64, len(lines))
	for _, l := range lines {
		net[l.ProductID] += kind.Effect(l.Quantity)
	}
	return sortedDeltas(net)
}

// sortedDeltas ordena por producto para que transacciones concurrentes bloqueen las filas
// de stock en el mismo orden.
func sortedDeltas(net map[string]int64) []stockDelta {
	out := make([]stockDelta, 0, len(net))
	for p, delta := range net {
		if delta != 0 {
			out = append(out, stockDelta{ProductID: p, Delta: delta})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out
}
