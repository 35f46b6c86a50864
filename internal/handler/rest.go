package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/simple-api/internal/model"
	"github.com/vyrodovalexey/simple-api/internal/store"
)

// Version is the application version.
const Version = model.APIVersion

// maxBodyBytes limits the size of item payloads.
const maxBodyBytes = 1 << 20

// Publisher receives item change events.
type Publisher interface {
	Publish(event model.ItemEvent)
}

// RESTHandler handles REST API requests for items.
type RESTHandler struct {
	store     store.Store
	logger    *zap.Logger
	publisher Publisher
}

// NewRESTHandler creates a new RESTHandler instance.
// publisher may be nil, in which case no change events are emitted.
func NewRESTHandler(s store.Store, logger *zap.Logger, publisher Publisher) *RESTHandler {
	return &RESTHandler{
		store:     s,
		logger:    logger,
		publisher: publisher,
	}
}

// RegisterRoutes registers the REST API routes with the router.
func (h *RESTHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/", h.Welcome).Methods(http.MethodGet)
	router.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	router.HandleFunc("/items", h.ListItems).Methods(http.MethodGet)
	router.HandleFunc("/items", h.CreateItem).Methods(http.MethodPost)
	router.HandleFunc("/items/{id}", h.GetItem).Methods(http.MethodGet)
	router.HandleFunc("/items/{id}", h.UpdateItem).Methods(http.MethodPut)
	router.HandleFunc("/items/{id}", h.DeleteItem).Methods(http.MethodDelete)
}

// Welcome handles GET / requests.
func (h *RESTHandler) Welcome(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, model.WelcomeResponse{Message: model.WelcomeMessage})
}

// HealthCheck handles GET /health requests.
func (h *RESTHandler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: Version,
	})
}

// ListItems handles GET /items requests.
func (h *RESTHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.List(r.Context())
	if err != nil {
		h.handleStoreError(w, err, "list items")
		return
	}

	h.writeJSON(w, http.StatusOK, items)
}

// GetItem handles GET /items/{id} requests.
func (h *RESTHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	item, err := h.store.Get(r.Context(), id)
	if err != nil {
		h.handleStoreError(w, err, "get item")
		return
	}

	h.writeJSON(w, http.StatusOK, item)
}

// CreateItem handles POST /items requests.
func (h *RESTHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	input, ok := h.decodeInput(w, r)
	if !ok {
		return
	}

	item := input.Item()
	created, err := h.store.Create(r.Context(), &item)
	if err != nil {
		h.handleStoreError(w, err, "create item")
		return
	}

	h.logger.Debug("item created", zap.String("item_id", created.ID))
	h.publish(model.EventItemCreated, created)
	h.writeJSON(w, http.StatusOK, created)
}

// UpdateItem handles PUT /items/{id} requests.
func (h *RESTHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	input, ok := h.decodeInput(w, r)
	if !ok {
		return
	}

	item := input.Item()
	updated, err := h.store.Update(r.Context(), id, &item)
	if err != nil {
		h.handleStoreError(w, err, "update item")
		return
	}

	h.logger.Debug("item updated", zap.String("item_id", updated.ID))
	h.publish(model.EventItemUpdated, updated)
	h.writeJSON(w, http.StatusOK, updated)
}

// DeleteItem handles DELETE /items/{id} requests.
func (h *RESTHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	deleted, err := h.store.Delete(r.Context(), id)
	if err != nil {
		h.handleStoreError(w, err, "delete item")
		return
	}

	h.logger.Debug("item deleted", zap.String("item_id", deleted.ID))
	h.publish(model.EventItemDeleted, deleted)
	h.writeJSON(w, http.StatusOK, deleted)
}

// decodeInput reads and validates the item payload. On failure it writes
// a 422 response and returns false.
func (h *RESTHandler) decodeInput(w http.ResponseWriter, r *http.Request) (*model.ItemInput, bool) {
	input, err := model.DecodeItemInput(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err == nil {
		return input, true
	}

	var verr *model.ValidationError
	if !errors.As(err, &verr) {
		h.logger.Error("failed to validate request body", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return nil, false
	}

	h.logger.Warn("validation failed", zap.Error(err))
	h.writeJSON(w, http.StatusUnprocessableEntity, model.ValidationErrorResponse{Detail: verr.Fields})
	return nil, false
}

func (h *RESTHandler) publish(eventType string, item *model.Item) {
	if h.publisher == nil {
		return
	}
	h.publisher.Publish(model.NewItemEvent(eventType, *item))
}

// handleStoreError handles store errors and writes appropriate HTTP responses.
func (h *RESTHandler) handleStoreError(w http.ResponseWriter, err error, operation string) {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrInvalidID):
		h.writeError(w, http.StatusNotFound, model.NotFoundMessage)
	default:
		h.logger.Error("store operation failed", zap.String("operation", operation), zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
	}
}

// writeJSON writes a JSON response with the given status code.
func (h *RESTHandler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}

// writeError writes an error response with the given status code and detail.
func (h *RESTHandler) writeError(w http.ResponseWriter, status int, detail string) {
	h.writeJSON(w, status, model.ErrorResponse{Detail: detail})
}
