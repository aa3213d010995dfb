package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jhoicas/kho-shard/internal/domain"
	"github.com/jhoicas/kho-shard/internal/domain/entity"
	"github.com/jhoicas/kho-shard/internal/domain/repository"
)

var _ repository.DocumentRepository = (*DocumentRepo)(nil)

// lineInsertChunk líneas por sentencia INSERT (5 parámetros por línea).
const lineInsertChunk = 500

// documentTables tablas y columnas de cada tipo de documento. Los nombres son constantes
// del adaptador; nunca provienen de la entrada del usuario.
type documentTables struct {
	header       string
	lines        string
	valueColumn  string
	withSupplier bool
}

var tablesByKind = map[entity.DocumentKind]documentTables{
	entity.DocumentImport: {header: "import_documents", lines: "import_lines", valueColumn: "unit_cost", withSupplier: true},
	entity.DocumentExport: {header: "export_documents", lines: "export_lines", valueColumn: "unit_price"},
}

func tablesFor(kind entity.DocumentKind) (documentTables, error) {
	t, ok := tablesByKind[kind]
	if !ok {
		return documentTables{}, fmt.Errorf("tipo de documento %q: %w", kind, domain.ErrInvalidInput)
	}
	return t, nil
}

// DocumentRepo implementación de DocumentRepository (usable con pool o tx).
type DocumentRepo struct {
	q Querier
}

// NewDocumentRepository construye el adaptador. Pasar pool o tx (Querier).
func NewDocumentRepository(q Querier) *DocumentRepo {
	return &DocumentRepo{q: q}
}

// Create persiste la cabecera y sus líneas. Asigna el ID si viene vacío.
func (r *DocumentRepo) Create(ctx context.Context, doc *entity.Document) error {
	t, err := tablesFor(doc.Kind)
	if err != nil {
		return err
	}
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	if t.withSupplier {
		query := fmt.Sprintf(`
			INSERT INTO %s (id, warehouse_id, supplier_id, doc_date, note, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`, t.header)
		_, err = r.q.Exec(ctx, query, doc.ID, doc.WarehouseID, doc.SupplierID, doc.Date, doc.Note, doc.CreatedAt, doc.UpdatedAt)
	} else {
		query := fmt.Sprintf(`
			INSERT INTO %s (id, warehouse_id, doc_date, note, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)`, t.header)
		_, err = r.q.Exec(ctx, query, doc.ID, doc.WarehouseID, doc.Date, doc.Note, doc.CreatedAt, doc.UpdatedAt)
	}
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("document %s: %w", doc.ID, domain.ErrDuplicate)
		}
		return fmt.Errorf("insert %s: %w", t.header, err)
	}
	for i := range doc.Lines {
		doc.Lines[i].DocumentID = doc.ID
	}
	return r.InsertLines(ctx, doc.Kind, doc.Lines)
}

// InsertLines inserta líneas en lotes parametrizados (un INSERT multi-fila por lote).
func (r *DocumentRepo) InsertLines(ctx context.Context, kind entity.DocumentKind, lines []entity.DocumentLine) error {
	t, err := tablesFor(kind)
	if err != nil {
		return err
	}
	for start := 0; start < len(lines); start += lineInsertChunk {
		end := min(start+lineInsertChunk, len(lines))
		chunk := lines[start:end]

		var b strings.Builder
		fmt.Fprintf(&b, "INSERT INTO %s (document_id, product_id, quantity, %s, note) VALUES ", t.lines, t.valueColumn)
		args := make([]any, 0, len(chunk)*5)
		for i, l := range chunk {
			if i > 0 {
				b.WriteString(", ")
			}
			n := i * 5
			fmt.Fprintf(&b, "($%d, $%d, $%d, $%d, $%d)", n+1, n+2, n+3, n+4, n+5)
			args = append(args, l.DocumentID, l.ProductID, l.Quantity, l.UnitValue, l.Note)
		}
		if _, err := r.q.Exec(ctx, b.String(), args...); err != nil {
			switch {
			case isUniqueViolation(err):
				return fmt.Errorf("insert %s: %w", t.lines, domain.ErrDuplicateLine)
			case isCheckViolation(err):
				return fmt.Errorf("insert %s: %w", t.lines, domain.ErrInvalidInput)
			}
			return fmt.Errorf("insert %s: %w", t.lines, err)
		}
	}
	return nil
}

// GetForUpdate obtiene el documento bloqueando la cabecera hasta el fin de la transacción.
func (r *DocumentRepo) GetForUpdate(ctx context.Context, kind entity.DocumentKind, id string) (*entity.Document, error) {
	return r.get(ctx, kind, id, true)
}

// GetByID obtiene el documento con sus líneas. Devuelve nil, nil si no existe.
func (r *DocumentRepo) GetByID(ctx context.Context, kind entity.DocumentKind, id string) (*entity.Document, error) {
	return r.get(ctx, kind, id, false)
}

func (r *DocumentRepo) get(ctx context.Context, kind entity.DocumentKind, id string, lock bool) (*entity.Document, error) {
	t, err := tablesFor(kind)
	if err != nil {
		return nil, err
	}
	supplierExpr := "''"
	if t.withSupplier {
		supplierExpr = "supplier_id"
	}
	query := fmt.Sprintf(`
		SELECT id, warehouse_id, %s, doc_date, note, created_at, updated_at
		FROM %s WHERE id = $1`, supplierExpr, t.header)
	if lock {
		query += " FOR UPDATE"
	}
	doc := entity.Document{Kind: kind}
	err = r.q.QueryRow(ctx, query, id).Scan(
		&doc.ID, &doc.WarehouseID, &doc.SupplierID, &doc.Date, &doc.Note, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get %s: %w", t.header, err)
	}

	linesQuery := fmt.Sprintf(`
		SELECT document_id, product_id, quantity, %s, note
		FROM %s WHERE document_id = $1 ORDER BY product_id`, t.valueColumn, t.lines)
	rows, err := r.q.Query(ctx, linesQuery, id)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", t.lines, err)
	}
	defer rows.Close()
	for rows.Next() {
		var l entity.DocumentLine
		if err := rows.Scan(&l.DocumentID, &l.ProductID, &l.Quantity, &l.UnitValue, &l.Note); err != nil {
			return nil, fmt.Errorf("scan %s: %w", t.lines, err)
		}
		doc.Lines = append(doc.Lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s: %w", t.lines, err)
	}
	return &doc, nil
}

// UpdateHeader actualiza fecha y nota. Bodega y proveedor no se tocan nunca.
func (r *DocumentRepo) UpdateHeader(ctx context.Context, kind entity.DocumentKind, id string, date time.Time, note string) error {
	t, err := tablesFor(kind)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`UPDATE %s SET doc_date = $2, note = $3, updated_at = now() WHERE id = $1`, t.header)
	cmd, err := r.q.Exec(ctx, query, id, date, note)
	if err != nil {
		return fmt.Errorf("update %s: %w", t.header, err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UpdateLine reescribe cantidad, valor unitario y nota de una línea existente.
func (r *DocumentRepo) UpdateLine(ctx context.Context, kind entity.DocumentKind, line entity.DocumentLine) error {
	t, err := tablesFor(kind)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
		UPDATE %s SET quantity = $3, %s = $4, note = $5
		WHERE document_id = $1 AND product_id = $2`, t.lines, t.valueColumn)
	cmd, err := r.q.Exec(ctx, query, line.DocumentID, line.ProductID, line.Quantity, line.UnitValue, line.Note)
	if err != nil {
		if isCheckViolation(err) {
			return fmt.Errorf("update %s: %w", t.lines, domain.ErrInvalidInput)
		}
		return fmt.Errorf("update %s: %w", t.lines, err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteLine elimina una línea del documento.
func (r *DocumentRepo) DeleteLine(ctx context.Context, kind entity.DocumentKind, documentID, productID string) error {
	t, err := tablesFor(kind)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE document_id = $1 AND product_id = $2`, t.lines)
	if _, err := r.q.Exec(ctx, query, documentID, productID); err != nil {
		return fmt.Errorf("delete %s: %w", t.lines, err)
	}
	return nil
}

// Delete elimina las líneas y luego la cabecera.
func (r *DocumentRepo) Delete(ctx context.Context, kind entity.DocumentKind, id string) error {
	t, err := tablesFor(kind)
	if err != nil {
		return err
	}
	if _, err := r.q.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE document_id = $1`, t.lines), id); err != nil {
		return fmt.Errorf("delete %s: %w", t.lines, err)
	}
	cmd, err := r.q.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, t.header), id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", t.header, err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// List lista cabeceras filtradas (fecha desc, id desc) y carga sus líneas con una consulta más.
func (r *DocumentRepo) List(ctx context.Context, kind entity.DocumentKind, f repository.DocumentFilter) ([]entity.Document, int64, error) {
	t, err := tablesFor(kind)
	if err != nil {
		return nil, 0, err
	}
	where, args := documentWhere(t, f)

	var total int64
	if err := r.q.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s%s`, t.header, where), args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count %s: %w", t.header, err)
	}
	docs := []entity.Document{}
	if total == 0 {
		return docs, 0, nil
	}

	supplierExpr := "''"
	if t.withSupplier {
		supplierExpr = "supplier_id"
	}
	query := fmt.Sprintf(`
		SELECT id, warehouse_id, %s, doc_date, note, created_at, updated_at
		FROM %s%s
		ORDER BY doc_date DESC, id DESC
		LIMIT $%d OFFSET $%d`, supplierExpr, t.header, where, len(args)+1, len(args)+2)
	rows, err := r.q.Query(ctx, query, append(args, f.Page.Limit, f.Page.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list %s: %w", t.header, err)
	}
	index := make(map[string]int)
	var ids []string
	for rows.Next() {
		doc := entity.Document{Kind: kind}
		if err := rows.Scan(&doc.ID, &doc.WarehouseID, &doc.SupplierID, &doc.Date, &doc.Note, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
			rows.Close()
			return nil, 0, fmt.Errorf("scan %s: %w", t.header, err)
		}
		index[doc.ID] = len(docs)
		ids = append(ids, doc.ID)
		docs = append(docs, doc)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list %s: %w", t.header, err)
	}
	if len(ids) == 0 {
		return docs, total, nil
	}

	linesQuery := fmt.Sprintf(`
		SELECT document_id, product_id, quantity, %s, note
		FROM %s WHERE document_id = ANY($1) ORDER BY document_id, product_id`, t.valueColumn, t.lines)
	lineRows, err := r.q.Query(ctx, linesQuery, ids)
	if err != nil {
		return nil, 0, fmt.Errorf("list %s: %w", t.lines, err)
	}
	defer lineRows.Close()
	for lineRows.Next() {
		var l entity.DocumentLine
		if err := lineRows.Scan(&l.DocumentID, &l.ProductID, &l.Quantity, &l.UnitValue, &l.Note); err != nil {
			return nil, 0, fmt.Errorf("scan %s: %w", t.lines, err)
		}
		if i, ok := index[l.DocumentID]; ok {
			docs[i].Lines = append(docs[i].Lines, l)
		}
	}
	if err := lineRows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list %s: %w", t.lines, err)
	}
	return docs, total, nil
}

// documentWhere arma el WHERE parametrizado del listado.
func documentWhere(t documentTables, f repository.DocumentFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.WarehouseID != "" {
		add("warehouse_id = $%d", f.WarehouseID)
	}
	if f.SupplierID != "" && t.withSupplier {
		add("supplier_id = $%d", f.SupplierID)
	}
	if !f.From.IsZero() {
		add("doc_date >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("doc_date <= $%d", f.To)
	}
	if f.Search != "" {
		add("note ILIKE '%%' || $%d || '%%'", f.Search)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
