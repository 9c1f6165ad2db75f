package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/kiwari-pos/order-desk/internal/composer"
	"github.com/kiwari-pos/order-desk/internal/model"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ComposerHandler drives the new-order workflow of a desk session.
type ComposerHandler struct {
	log *zap.SugaredLogger
}

func NewComposerHandler(log *zap.SugaredLogger) *ComposerHandler {
	return &ComposerHandler{log: log}
}

// RegisterRoutes registers composer endpoints.
// Expected to be mounted at /desk/sessions/{sid} behind RequireSession.
func (h *ComposerHandler) RegisterRoutes(r chi.Router) {
	r.Route("/composer", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Delete("/", h.Reset)
		r.Post("/customer", h.SelectCustomer)
		r.Post("/products", h.AddProduct)
		r.Patch("/lines/{pid}", h.UpdateLine)
		r.Delete("/lines/{pid}", h.RemoveLine)
		r.Post("/addresses", h.AddAddress)
		r.Put("/address", h.SelectAddress)
		r.Put("/settings", h.SetSettings)
		r.Post("/submit", h.Submit)
	})
}

// --- Request / Response types ---

type selectCustomerRequest struct {
	Type string `json:"type"`
	ID   int64  `json:"id"`
}

type addProductRequest struct {
	ProductID int64 `json:"product_id"`
}

type updateLineRequest struct {
	Qty                  *int             `json:"qty"`
	ExtraDiscountPercent *decimal.Decimal `json:"extra_discount_percent"`
	SellingPrice         *decimal.Decimal `json:"selling_price"`
}

type selectAddressRequest struct {
	AddressID int64 `json:"address_id"`
}

type settingsRequest struct {
	DeliveryCharge decimal.Decimal `json:"delivery_charge"`
	FreeDelivery   bool            `json:"free_delivery"`
	// ManualSubtotal is the raw text of the override field; "" clears it.
	ManualSubtotal string `json:"manual_subtotal"`
	PaymentType    string `json:"payment_type"`
	Channel        string `json:"channel"`
	Remarks        string `json:"remarks"`
}

type submitResponse struct {
	OrderID string `json:"order_id"`
}

// --- Handlers ---

// Get handles GET /desk/sessions/{sid}/composer.
func (h *ComposerHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sessionFrom(r).Composer.Snapshot())
}

// Reset handles DELETE /desk/sessions/{sid}/composer.
func (h *ComposerHandler) Reset(w http.ResponseWriter, r *http.Request) {
	c := sessionFrom(r).Composer
	c.Reset()
	writeJSON(w, http.StatusOK, c.Snapshot())
}

// SelectCustomer handles POST /desk/sessions/{sid}/composer/customer.
func (h *ComposerHandler) SelectCustomer(w http.ResponseWriter, r *http.Request) {
	var req selectCustomerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.ID <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "id is required"})
		return
	}

	c := sessionFrom(r).Composer
	if err := c.SelectCustomer(r.Context(), req.Type, req.ID); err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c.Snapshot())
}

// AddProduct handles POST /desk/sessions/{sid}/composer/products.
func (h *ComposerHandler) AddProduct(w http.ResponseWriter, r *http.Request) {
	var req addProductRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.ProductID <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "product_id is required"})
		return
	}

	c := sessionFrom(r).Composer
	if err := c.AddProduct(r.Context(), req.ProductID); err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c.Snapshot())
}

// UpdateLine handles PATCH /desk/sessions/{sid}/composer/lines/{pid}.
func (h *ComposerHandler) UpdateLine(w http.ResponseWriter, r *http.Request) {
	pid, err := strconv.ParseInt(chi.URLParam(r, "pid"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product ID"})
		return
	}
	var req updateLineRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	c := sessionFrom(r).Composer
	err = c.EditLine(pid, composer.LineEdit{
		Qty:                  req.Qty,
		ExtraDiscountPercent: req.ExtraDiscountPercent,
		SellingPrice:         req.SellingPrice,
	})
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c.Snapshot())
}

// RemoveLine handles DELETE /desk/sessions/{sid}/composer/lines/{pid}.
func (h *ComposerHandler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	pid, err := strconv.ParseInt(chi.URLParam(r, "pid"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product ID"})
		return
	}

	c := sessionFrom(r).Composer
	if err := c.RemoveLine(pid); err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c.Snapshot())
}

// AddAddress handles POST /desk/sessions/{sid}/composer/addresses.
func (h *ComposerHandler) AddAddress(w http.ResponseWriter, r *http.Request) {
	var req model.NewAddress
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Name == "" || req.Mobile == "" || req.Pincode == "" || req.AddressLine == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name, mobile, pincode and address_line are required"})
		return
	}

	c := sessionFrom(r).Composer
	if _, err := c.AddAddress(r.Context(), req); err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c.Snapshot())
}

// SelectAddress handles PUT /desk/sessions/{sid}/composer/address.
func (h *ComposerHandler) SelectAddress(w http.ResponseWriter, r *http.Request) {
	var req selectAddressRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	c := sessionFrom(r).Composer
	if err := c.SelectAddress(req.AddressID); err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c.Snapshot())
}

// SetSettings handles PUT /desk/sessions/{sid}/composer/settings.
func (h *ComposerHandler) SetSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	manual, err := composer.ParseManualSubtotal(req.ManualSubtotal)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}

	c := sessionFrom(r).Composer
	err = c.SetOptions(composer.Options{
		DeliveryCharge: req.DeliveryCharge,
		FreeDelivery:   req.FreeDelivery,
		ManualSubtotal: manual,
		PaymentType:    req.PaymentType,
		Channel:        req.Channel,
		Remarks:        req.Remarks,
	})
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c.Snapshot())
}

// Submit handles POST /desk/sessions/{sid}/composer/submit.
func (h *ComposerHandler) Submit(w http.ResponseWriter, r *http.Request) {
	id, err := sessionFrom(r).Composer.Submit(r.Context())
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, submitResponse{OrderID: id})
}
