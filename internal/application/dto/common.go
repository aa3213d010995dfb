package dto

// ErrorResponse cuerpo de error HTTP.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// HealthResponse estado de cada conexión (master y shards).
type HealthResponse struct {
	Status      string            `json:"status"`
	Connections map[string]string `json:"connections"`
}

// PageResponse metadatos de página en respuestas de listados.
type PageResponse struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"total_pages"`
}
