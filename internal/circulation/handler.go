// internal/circulation/handler.go
package circulation

import (
	"context"
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

// StaffRoutes registers the circulation desk endpoints. The acting staff
// member is taken from the request's token claims.
func (h *Handler) StaffRoutes(r chi.Router) {
	r.Post("/loans", h.handleCheckout)
	r.Get("/loans/{id}", h.handleGetLoan)
	r.Post("/loans/{id}/renew", h.loanTransition(h.service.RenewLoan))
	r.Post("/loans/{id}/return", h.handleReturn)
	r.Post("/loans/{id}/damaged", h.loanTransition(h.service.MarkLoanDamaged))
	r.Post("/loans/{id}/lost", h.loanTransition(h.service.MarkLoanLost))
	r.Post("/loans/{id}/overdue", h.loanTransition(h.service.ProcessOverdueLoan))

	r.Post("/holds", h.handlePlaceHold)
	r.Get("/holds/{id}", h.handleGetHold)
	r.Post("/holds/{id}/cancel", h.handleCancelHold)

	r.Get("/patrons/{id}/fines", h.handleListFines)
	r.Post("/fines/{id}/pay", h.fineTransition(h.service.PayFine))
	r.With(auth.RequireRole("manager", "admin")).
		Post("/fines/{id}/waive", h.fineTransition(h.service.WaiveFine))
}

func (h *Handler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	staffID, ok := actingStaff(w, r)
	if !ok {
		return
	}
	var req struct {
		CopyID   uuid.UUID `json:"copy_id"`
		PatronID uuid.UUID `json:"patron_id"`
	}
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	loan, err := h.service.CheckoutCopy(r.Context(), req.CopyID, req.PatronID, staffID)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, loan)
}

func (h *Handler) handleGetLoan(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	loan, err := h.service.GetLoan(r.Context(), id)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, loan)
}

func (h *Handler) handleReturn(w http.ResponseWriter, r *http.Request) {
	staffID, ok := actingStaff(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	loan, err := h.service.ReturnLoan(r.Context(), id, staffID)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, loan)
}

func (h *Handler) loanTransition(apply func(context.Context, uuid.UUID) (*Loan, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		loan, err := apply(r.Context(), id)
		if err != nil {
			respond.Fail(w, r, err)
			return
		}
		respond.JSON(w, http.StatusOK, loan)
	}
}

func (h *Handler) handlePlaceHold(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ItemID   uuid.UUID `json:"item_id"`
		PatronID uuid.UUID `json:"patron_id"`
	}
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	hold, err := h.service.PlaceHold(r.Context(), req.ItemID, req.PatronID)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, hold)
}

func (h *Handler) handleGetHold(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	hold, err := h.service.GetHold(r.Context(), id)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, hold)
}

func (h *Handler) handleCancelHold(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	hold, err := h.service.CancelHold(r.Context(), id)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, hold)
}

func (h *Handler) handleListFines(w http.ResponseWriter, r *http.Request) {
	patronID, ok := pathID(w, r)
	if !ok {
		return
	}
	fines, err := h.service.ListFines(r.Context(), patronID)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, fines)
}

func (h *Handler) fineTransition(apply func(context.Context, uuid.UUID) (*Fine, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		fine, err := apply(r.Context(), id)
		if err != nil {
			respond.Fail(w, r, err)
			return
		}
		respond.JSON(w, http.StatusOK, fine)
	}
}

func actingStaff(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	claims := auth.ClaimsFrom(r.Context())
	if claims == nil {
		respond.Error(w, http.StatusUnauthorized, "not authenticated")
		return uuid.Nil, false
	}
	return claims.StaffID, true
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := respond.PathID(r, "id")
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}
