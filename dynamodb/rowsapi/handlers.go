package rowsapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/acksell/ddbrows/dynamodb/schema"
	"github.com/acksell/ddbrows/rows"
	"github.com/acksell/ddbrows/rows/model"
)

const maxBodyBytes = 1 << 20

// Constructor is satisfied by *rows.Materializer.
type Constructor interface {
	Construct(ctx context.Context, req rows.Request) ([]any, error)
}

// APIHandler serves row materialization over HTTP.
type APIHandler struct {
	rows   Constructor
	schema *schema.Loaded
	logger *slog.Logger
}

func NewAPIHandler(c Constructor, s *schema.Loaded, logger *slog.Logger) *APIHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &APIHandler{rows: c, schema: s, logger: logger}
}

// RegisterRoutes registers all API routes on the given mux.
func (h *APIHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/select", h.selectRows)
	mux.HandleFunc("GET /api/models", h.listModels)
	mux.HandleFunc("GET /api/models/{name}", h.getModel)
}

type selectResponse struct {
	RequestID string `json:"requestId"`
	Rows      []any  `json:"rows"`
	Count     int    `json:"count"`
}

func (h *APIHandler) selectRows(w http.ResponseWriter, r *http.Request) {
	var q Query
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&q); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if q.RequestID == "" {
		q.RequestID = r.Header.Get("X-Request-ID")
	}
	if q.RequestID == "" {
		q.RequestID = rows.NewRequestID()
	}

	req, err := q.Request(h.schema)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	out, err := h.rows.Construct(r.Context(), req)
	if err == nil {
		out, err = Resolve(r.Context(), out)
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "select failed", "request_id", q.RequestID, "error", err)
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, selectResponse{RequestID: q.RequestID, Rows: out, Count: len(out)})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, rows.ErrSchema), errors.Is(err, rows.ErrBuild):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

type modelInfo struct {
	Name             string               `json:"name"`
	Table            string               `json:"table"`
	Attributes       []string             `json:"attributes"`
	SecondaryIndexes []string             `json:"secondaryIndexes"`
	Relationships    []model.Relationship `json:"relationships,omitempty"`
}

func (h *APIHandler) describe(name string, e model.Entity) modelInfo {
	info := modelInfo{
		Name:             name,
		Table:            model.TableName(e),
		SecondaryIndexes: model.SecondaryIndexes(e),
	}
	if attrs, err := model.Attributes(e); err == nil {
		info.Attributes = attrs
	}
	switch t := e.(type) {
	case *model.Model:
		info.Relationships = t.Relationships
	case *model.Alias:
		if t.Class != nil {
			info.Relationships = t.Class.Relationships
		}
	}
	return info
}

// listModels returns every model and alias.
func (h *APIHandler) listModels(w http.ResponseWriter, r *http.Request) {
	names := h.schema.EntityNames()
	models := make([]modelInfo, 0, len(names))
	for _, name := range names {
		e, _ := h.schema.Entity(name)
		models = append(models, h.describe(name, e))
	}
	writeJSON(w, http.StatusOK, map[string]any{"models": models})
}

func (h *APIHandler) getModel(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	e, ok := h.schema.Entity(name)
	if !ok {
		writeError(w, http.StatusNotFound, "model not found: "+name)
		return
	}
	writeJSON(w, http.StatusOK, h.describe(name, e))
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
