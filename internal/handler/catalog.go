package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/kiwari-pos/order-desk/internal/enum"
	"go.uber.org/zap"
)

// CatalogHandler passes reference data through from the upstream.
type CatalogHandler struct {
	log *zap.SugaredLogger
}

func NewCatalogHandler(log *zap.SugaredLogger) *CatalogHandler {
	return &CatalogHandler{log: log}
}

// RegisterRoutes registers catalog endpoints.
// Expected to be mounted at /desk/sessions/{sid} behind RequireSession.
func (h *CatalogHandler) RegisterRoutes(r chi.Router) {
	r.Route("/catalog", func(r chi.Router) {
		r.Get("/products", h.Products)
		r.Get("/products/{pid}", h.ProductDetails)
		r.Get("/customers", h.Customers)
		r.Get("/customers/{type}/{id}/addresses", h.Addresses)
		r.Get("/states", h.States)
	})
}

// Products handles GET /desk/sessions/{sid}/catalog/products.
func (h *CatalogHandler) Products(w http.ResponseWriter, r *http.Request) {
	out, err := sessionFrom(r).Client.Products(r.Context())
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// ProductDetails handles GET /desk/sessions/{sid}/catalog/products/{pid}.
func (h *CatalogHandler) ProductDetails(w http.ResponseWriter, r *http.Request) {
	pid, err := strconv.ParseInt(chi.URLParam(r, "pid"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product ID"})
		return
	}
	out, err := sessionFrom(r).Client.ProductDetails(r.Context(), pid)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// Customers handles GET /desk/sessions/{sid}/catalog/customers.
func (h *CatalogHandler) Customers(w http.ResponseWriter, r *http.Request) {
	out, err := sessionFrom(r).Client.Customers(r.Context())
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// Addresses handles GET /desk/sessions/{sid}/catalog/customers/{type}/{id}/addresses.
func (h *CatalogHandler) Addresses(w http.ResponseWriter, r *http.Request) {
	custType := chi.URLParam(r, "type")
	if !enum.IsCustomerType(custType) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid customer type"})
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid customer ID"})
		return
	}
	out, err := sessionFrom(r).Client.Addresses(r.Context(), custType, id)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// States handles GET /desk/sessions/{sid}/catalog/states.
func (h *CatalogHandler) States(w http.ResponseWriter, r *http.Request) {
	out, err := sessionFrom(r).Client.States(r.Context())
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
