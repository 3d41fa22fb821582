package acquisitions

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"libraryflow/internal/auth"
	"libraryflow/internal/respond"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// StaffRoutes registers the order endpoints. Orders are placed and received
// on behalf of the staff member in the token claims.
func (h *Handler) StaffRoutes(r chi.Router) {
	r.Get("/orders", h.handleListOrders)
	r.Get("/orders/{id}", h.handleGetOrder)
	r.Post("/orders", h.handleCreateOrder)
	r.Post("/orders/{id}/lines", h.handleAddLine)
	r.Post("/orders/{id}/receive", h.handleReceive)
	r.Post("/orders/{id}/cancel", h.handleCancel)
}

func (h *Handler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFrom(r.Context())
	if claims == nil {
		respond.Error(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	var req struct {
		VendorID uuid.UUID `json:"vendor_id"`
	}
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.service.CreateOrder(r.Context(), req.VendorID, claims.StaffID)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, order)
}

func (h *Handler) handleAddLine(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		ItemID         uuid.UUID `json:"item_id"`
		Quantity       int       `json:"quantity"`
		UnitPriceCents int64     `json:"unit_price_cents"`
	}
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.service.AddOrderLine(r.Context(), id, req.ItemID, req.Quantity, req.UnitPriceCents)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, order)
}

func (h *Handler) handleReceive(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFrom(r.Context())
	if claims == nil {
		respond.Error(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	order, err := h.service.ReceiveOrder(r.Context(), id, claims.StaffID)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, order)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	order, err := h.service.CancelOrder(r.Context(), id)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, order)
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	order, err := h.service.GetOrder(r.Context(), id)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, order)
}

func (h *Handler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.ListOrders(r.Context())
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, orders)
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := respond.PathID(r, "id")
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}
