package inventory

import (
	"fmt"
	"time"

	"github.com/jhoicas/kho-shard/internal/application/dto"
	"github.com/jhoicas/kho-shard/internal/domain"
	"github.com/jhoicas/kho-shard/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// DateLayout formato de fecha de los documentos en la API.
const DateLayout = "2006-01-02"

// CreateInputFromRequest adapta el body HTTP a CreateDocumentInput.
func CreateInputFromRequest(in dto.CreateDocumentRequest) (CreateDocumentInput, error) {
	date, err := parseDate(in.Date)
	if err != nil {
		return CreateDocumentInput{}, err
	}
	return CreateDocumentInput{
		WarehouseID: in.WarehouseID,
		SupplierID:  in.SupplierID,
		Date:        date,
		Note:        in.Note,
		Lines:       linesFromRequest(in.Lines),
	}, nil
}

// UpdateInputFromRequest adapta el body HTTP a UpdateDocumentInput; id viene de la ruta.
func UpdateInputFromRequest(id string, in dto.UpdateDocumentRequest) (UpdateDocumentInput, error) {
	date, err := parseDate(in.Date)
	if err != nil {
		return UpdateDocumentInput{}, err
	}
	return UpdateDocumentInput{
		ID:          id,
		WarehouseID: in.WarehouseID,
		SupplierID:  in.SupplierID,
		Date:        date,
		Note:        in.Note,
		Lines:       linesFromRequest(in.Lines),
	}, nil
}

// DocumentResponseFrom arma la salida HTTP de un documento.
func DocumentResponseFrom(doc *entity.Document) dto.DocumentResponse {
	out := dto.DocumentResponse{
		ID:          doc.ID,
		Kind:        string(doc.Kind),
		WarehouseID: doc.WarehouseID,
		SupplierID:  doc.SupplierID,
		Date:        doc.Date.Format(DateLayout),
		Note:        doc.Note,
		Lines:       make([]dto.DocumentLineResponse, 0, len(doc.Lines)),
		Total:       decimal.Zero,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}
	for _, l := range doc.Lines {
		total := l.Total()
		out.Lines = append(out.Lines, dto.DocumentLineResponse{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitValue: l.UnitValue,
			Total:     total,
			Note:      l.Note,
		})
		out.Total = out.Total.Add(total)
	}
	return out
}

// StockLevelResponseFrom arma la salida HTTP de unas existencias.
func StockLevelResponseFrom(s *entity.StockLevel) dto.StockLevelResponse {
	out := dto.StockLevelResponse{
		WarehouseID:    s.WarehouseID,
		ProductID:      s.ProductID,
		QuantityOnHand: s.QuantityOnHand,
	}
	if !s.UpdatedAt.IsZero() {
		t := s.UpdatedAt
		out.UpdatedAt = &t
	}
	return out
}

func linesFromRequest(in []dto.DocumentLineRequest) []LineInput {
	out := make([]LineInput, len(in))
	for i, l := range in {
		out[i] = LineInput{ProductID: l.ProductID, Quantity: l.Quantity, UnitValue: l.UnitValue, Note: l.Note}
	}
	return out
}

// parseDate acepta YYYY-MM-DD o RFC3339; vacío devuelve la fecha cero.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("fecha %q inválida, use %s: %w", s, DateLayout, domain.ErrInvalidInput)
	}
	return t, nil
}

// ListInputFromQuery adapta la query string del listado.
func ListInputFromQuery(q dto.ListDocumentsQuery) (ListDocumentsInput, error) {
	from, err := parseDate(q.From)
	if err != nil {
		return ListDocumentsInput{}, err
	}
	to, err := parseDate(q.To)
	if err != nil {
		return ListDocumentsInput{}, err
	}
	return ListDocumentsInput{
		WarehouseID: q.WarehouseID,
		SupplierID:  q.SupplierID,
		From:        from,
		To:          to,
		Search:      q.Search,
		Page:        q.Page,
		Limit:       q.Limit,
	}, nil
}

// DocumentListResponseFrom arma la página de documentos.
func DocumentListResponseFrom(list *DocumentList) dto.DocumentListResponse {
	out := dto.DocumentListResponse{
		Data:       make([]dto.DocumentResponse, 0, len(list.Items)),
		Pagination: pageResponse(list.Total, list.Page, list.Limit),
	}
	for i := range list.Items {
		out.Data = append(out.Data, DocumentResponseFrom(&list.Items[i]))
	}
	return out
}

// StockListResponseFrom arma la página de existencias.
func StockListResponseFrom(list *StockList) dto.StockListResponse {
	out := dto.StockListResponse{
		Data:       make([]dto.StockLevelResponse, 0, len(list.Items)),
		Pagination: pageResponse(list.Total, list.Page, list.Limit),
	}
	for i := range list.Items {
		out.Data = append(out.Data, StockLevelResponseFrom(&list.Items[i]))
	}
	return out
}

func pageResponse(total int64, page, limit int) dto.PageResponse {
	pages := 0
	if limit > 0 {
		pages = int((total + int64(limit) - 1) / int64(limit))
	}
	return dto.PageResponse{Total: total, Page: page, Limit: limit, TotalPages: pages}
}
