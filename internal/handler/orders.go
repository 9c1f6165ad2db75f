package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kiwari-pos/order-desk/internal/dispatch"
	"github.com/kiwari-pos/order-desk/internal/loader"
	"github.com/kiwari-pos/order-desk/internal/model"
	"go.uber.org/zap"
)

// OrderHandler serves the order list, row expansion, actions and the
// serial editor of a desk session.
type OrderHandler struct {
	log *zap.SugaredLogger
}

func NewOrderHandler(log *zap.SugaredLogger) *OrderHandler {
	return &OrderHandler{log: log}
}

// RegisterRoutes registers order endpoints.
// Expected to be mounted at /desk/sessions/{sid} behind RequireSession.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Put("/filter", h.SetFilter)
	r.Get("/orders", h.List)
	r.Post("/orders/more", h.LoadMore)
	r.Post("/orders/refresh", h.Refresh)
	r.Post("/orders/{id}/actions", h.Dispatch)
	r.Post("/orders/{id}/toggle", h.Toggle)
	r.Get("/orders/{id}/row", h.Row)
	r.Get("/orders/{id}/serials", h.Serials)
	r.Post("/orders/{id}/serials", h.SaveSerials)
}

// --- Request / Response types ---

type listResponse struct {
	Orders     []model.Order `json:"orders"`
	Pagination loader.State  `json:"pagination"`
}

type loadResponse struct {
	Received int `json:"received"`
	listResponse
}

type actionRequest struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

type serialsRequest struct {
	Entries []model.SerialEntry `json:"entries"`
}

type serialsResponse struct {
	Entries      []model.SerialEntry `json:"entries"`
	SerialStatus string              `json:"serial_status,omitempty"`
}

// --- Handlers ---

// SetFilter handles PUT /desk/sessions/{sid}/filter: discard the list and
// load the first page under the new filter.
func (h *OrderHandler) SetFilter(w http.ResponseWriter, r *http.Request) {
	var f model.Filter
	if err := decodeJSON(r, &f); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	s := sessionFrom(r)
	n, err := s.Loader.Reset(r.Context(), f)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loadResponse{Received: n, listResponse: h.list(r)})
}

// List handles GET /desk/sessions/{sid}/orders.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.list(r))
}

// LoadMore handles POST /desk/sessions/{sid}/orders/more, sent when the
// end-of-list sentinel scrolls into view.
func (h *OrderHandler) LoadMore(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)
	n, err := s.Loader.LoadMore(r.Context())
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loadResponse{Received: n, listResponse: h.list(r)})
}

// Refresh handles POST /desk/sessions/{sid}/orders/refresh.
func (h *OrderHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := sessionFrom(r).Refresh(r.Context()); err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.list(r))
}

// Dispatch handles POST /desk/sessions/{sid}/orders/{id}/actions.
func (h *OrderHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Kind == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "kind is required"})
		return
	}

	action, err := dispatch.Decode(chi.URLParam(r, "id"), req.Kind, req.Payload)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}

	res, err := sessionFrom(r).Dispatcher.Dispatch(r.Context(), action)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Toggle handles POST /desk/sessions/{sid}/orders/{id}/toggle.
func (h *OrderHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	v, err := sessionFrom(r).Rows.Toggle(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// Row handles GET /desk/sessions/{sid}/orders/{id}/row.
func (h *OrderHandler) Row(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sessionFrom(r).Rows.View(chi.URLParam(r, "id")))
}

// Serials handles GET /desk/sessions/{sid}/orders/{id}/serials.
func (h *OrderHandler) Serials(w http.ResponseWriter, r *http.Request) {
	entries, err := sessionFrom(r).Serials.Load(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, serialsResponse{Entries: entries})
}

// SaveSerials handles POST /desk/sessions/{sid}/orders/{id}/serials.
func (h *OrderHandler) SaveSerials(w http.ResponseWriter, r *http.Request) {
	var req serialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	status, err := sessionFrom(r).Serials.Save(r.Context(), chi.URLParam(r, "id"), req.Entries)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, serialsResponse{Entries: req.Entries, SerialStatus: status})
}

func (h *OrderHandler) list(r *http.Request) listResponse {
	s := sessionFrom(r)
	return listResponse{Orders: s.Store.List(), Pagination: s.Loader.State()}
}
