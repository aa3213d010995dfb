package repository

import (
	"context"
	"time"

	"github.com/jhoicas/kho-shard/internal/domain/entity"
)

// Page ventana de un listado.
type Page struct {
	Limit  int
	Offset int
}

// DocumentFilter filtros del listado de documentos. Los campos vacíos no filtran; From y To
// son inclusivos y se comparan por fecha del documento.
type DocumentFilter struct {
	WarehouseID string
	SupplierID  string // solo entradas
	From        time.Time
	To          time.Time
	Search      string // texto contenido en la nota
	Page        Page
}

// DocumentRepository persiste cabeceras y líneas de documentos de entrada/salida.
// El tipo de documento selecciona las tablas; la semántica es idéntica para ambos.
type DocumentRepository interface {
	Create(ctx context.Context, doc *entity.Document) error
	// GetForUpdate obtiene cabecera y líneas bloqueando la cabecera (SELECT FOR UPDATE).
	GetForUpdate(ctx context.Context, kind entity.DocumentKind, id string) (*entity.Document, error)
	GetByID(ctx context.Context, kind entity.DocumentKind, id string) (*entity.Document, error)
	// List devuelve la página pedida (fecha desc, id desc) con sus líneas y el total sin paginar.
	List(ctx context.Context, kind entity.DocumentKind, f DocumentFilter) ([]entity.Document, int64, error)
	UpdateHeader(ctx context.Context, kind entity.DocumentKind, id string, date time.Time, note string) error
	InsertLines(ctx context.Context, kind entity.DocumentKind, lines []entity.DocumentLine) error
	UpdateLine(ctx context.Context, kind entity.DocumentKind, line entity.DocumentLine) error
	DeleteLine(ctx context.Context, kind entity.DocumentKind, documentID, productID string) error
	// Delete borra primero las líneas y luego la cabecera.
	Delete(ctx context.Context, kind entity.DocumentKind, id string) error
}
