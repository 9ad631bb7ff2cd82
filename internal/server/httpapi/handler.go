// Package httpapi exposes the todo service as a JSON REST API.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/todokeeper/internal/common"
	"github.com/dmitrijs2005/todokeeper/internal/logging"
	"github.com/dmitrijs2005/todokeeper/internal/server/export"
	"github.com/dmitrijs2005/todokeeper/internal/server/models"
)

// MaxBodyBytes caps request bodies.
const MaxBodyBytes = 1 << 20

// TodoService is the subset of services.TodoService the handlers use.
type TodoService interface {
	Create(ctx context.Context, in models.CreateTodo) (*models.Todo, error)
	List(ctx context.Context, filter models.ListFilter) ([]models.Todo, error)
	Get(ctx context.Context, id string) (*models.Todo, error)
	Update(ctx context.Context, id string, patch models.UpdateTodo) (*models.Todo, error)
	Delete(ctx context.Context, id string) error
	Exists(ctx context.Context, id string) (bool, error)
	FindByTags(ctx context.Context, tags []string) ([]models.Todo, error)
	Search(ctx context.Context, text string) ([]models.Todo, error)
	FindByDateRange(ctx context.Context, from, to time.Time) ([]models.Todo, error)
	CountByStatus(ctx context.Context, search string) (models.StatusCount, error)
	Ping(ctx context.Context) error
}

// Exporter uploads a snapshot of all todos. A nil Exporter means export is
// not configured.
type Exporter interface {
	Export(ctx context.Context) (*export.Snapshot, error)
}

type Handler struct {
	svc      TodoService
	exporter Exporter
	logger   logging.Logger
}

func NewHandler(svc TodoService, exporter Exporter, logger logging.Logger) *Handler {
	return &Handler{svc: svc, exporter: exporter, logger: logger.With("module", "httpapi")}
}

// Routes returns the API wrapped in recovery, CORS and access logging.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /todos", h.HandleCreate)
	mux.HandleFunc("GET /todos", h.HandleList)
	mux.HandleFunc("GET /todos/{id}", h.HandleGet)
	mux.HandleFunc("PATCH /todos/{id}", h.HandleUpdate)
	mux.HandleFunc("DELETE /todos/{id}", h.HandleDelete)
	mux.HandleFunc("GET /todos/search", h.HandleSearch)
	mux.HandleFunc("GET /todos/search/text", h.HandleSearch)
	mux.HandleFunc("GET /todos/tags/{tags}", h.HandleFindByTags)
	mux.HandleFunc("GET /todos/exists/{id}", h.HandleExists)
	mux.HandleFunc("GET /todos/count/status", h.HandleCount)
	mux.HandleFunc("GET /todos/range", h.HandleRange)
	mux.HandleFunc("POST /todos/export", h.HandleExport)
	mux.HandleFunc("GET /healthz", h.HandleHealth)

	return h.recoverer(h.cors(h.accessLog(mux)))
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in models.CreateTodo
	if err := decodeJSON(w, r, &in); err != nil {
		h.sendError(w, r, err)
		return
	}

	t, err := h.svc.Create(r.Context(), in)
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusCreated, t)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := models.ListFilter{Search: strings.TrimSpace(q.Get("search"))}
	switch c := q.Get("completed"); c {
	case "":
	case "true", "false":
		v := c == "true"
		filter.Completed = &v
	default:
		h.sendError(w, r, fmt.Errorf("%w: completed must be true or false", common.ErrorValidation))
		return
	}

	items, err := h.svc.List(r.Context(), filter)
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, items)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, t)
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var patch models.UpdateTodo
	if err := decodeJSON(w, r, &patch); err != nil {
		h.sendError(w, r, err)
		return
	}

	t, err := h.svc.Update(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, t)
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), r.PathValue("id")); err != nil {
		h.sendError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, items)
}

func (h *Handler) HandleFindByTags(w http.ResponseWriter, r *http.Request) {
	tags := strings.Split(r.PathValue("tags"), ",")
	for i := range tags {
		tags[i] = strings.TrimSpace(tags[i])
	}

	items, err := h.svc.FindByTags(r.Context(), tags)
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, items)
}

func (h *Handler) HandleExists(w http.ResponseWriter, r *http.Request) {
	ok, err := h.svc.Exists(r.Context(), r.PathValue("id"))
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, map[string]bool{"exists": ok})
}

func (h *Handler) HandleCount(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.CountByStatus(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, c)
}

// HandleRange lists todos created within [from, to]. Both bounds are
// required and use RFC 3339.
func (h *Handler) HandleRange(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := parseTime("from", q.Get("from"))
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	to, err := parseTime("to", q.Get("to"))
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	items, err := h.svc.FindByDateRange(r.Context(), from, to)
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, items)
}

func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	if h.exporter == nil {
		h.sendError(w, r, common.ErrorExportDisabled)
		return
	}
	snap, err := h.exporter.Export(r.Context())
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, snap)
}

func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Ping(r.Context()); err != nil {
		h.logger.Warn(r.Context(), "health check failed", "error", err)
		h.writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	h.writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func parseTime(name, v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, fmt.Errorf("%w: %s is required", common.ErrorValidation, name)
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be an RFC 3339 timestamp", common.ErrorValidation, name)
	}
	return t, nil
}

// decodeJSON reads exactly one JSON object into dst. Unknown fields, type
// mismatches, trailing data and oversized bodies are validation errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return fmt.Errorf("%w: request body is empty", common.ErrorValidation)
		case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
			return fmt.Errorf("%w: malformed JSON", common.ErrorValidation)
		case errors.As(err, &typeErr):
			return fmt.Errorf("%w: %s must be of type %s", common.ErrorValidation, typeErr.Field, typeErr.Type)
		case errors.As(err, &maxErr):
			return fmt.Errorf("%w: request body too large", common.ErrorValidation)
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			field := strings.TrimPrefix(err.Error(), "json: unknown field ")
			return fmt.Errorf("%w: property %s should not exist", common.ErrorValidation, strings.Trim(field, `"`))
		default:
			return fmt.Errorf("%w: %v", common.ErrorValidation, err)
		}
	}
	if dec.More() {
		return fmt.Errorf("%w: request body must contain a single JSON object", common.ErrorValidation)
	}
	return nil
}
