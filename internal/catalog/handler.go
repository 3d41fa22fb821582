// internal/catalog/handler.go
package catalog

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"libraryflow/internal/respond"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// PublicRoutes registers the read-only catalog endpoints.
func (h *Handler) PublicRoutes(r chi.Router) {
	r.Get("/items", h.handleListItems)
	r.Get("/items/{id}", h.handleGetItem)
	r.Get("/items/{id}/copies", h.handleListCopies)
	r.Get("/copies/{id}", h.handleGetCopy)
	r.Get("/serials", h.handleListSerials)
	r.Get("/serials/{id}", h.handleGetSerial)
	r.Get("/serials/{id}/issues", h.handleListIssues)
}

// StaffRoutes registers the catalog endpoints that change state.
func (h *Handler) StaffRoutes(r chi.Router) {
	r.Post("/items", h.handleCatalogItem)
	r.Post("/items/{id}/copies", h.handleAddCopy)
	r.Post("/copies/{id}/withdraw", h.handleWithdrawCopy)
	r.Post("/copies/{id}/supersede", h.handleMarkOlderVersion)
	r.Post("/serials", h.handleSubscribe)
	r.Post("/serials/{id}/activate", h.handleActivateSerial)
	r.Post("/serials/{id}/deactivate", h.handleDeactivateSerial)
	r.Post("/serials/{id}/issues", h.handleReceiveIssue)
	r.Post("/issues/{id}/copy", h.handleAttachCopy)
}

func (h *Handler) handleCatalogItem(w http.ResponseWriter, r *http.Request) {
	var req ItemInput
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := h.service.CatalogItem(r.Context(), req)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, item)
}

func (h *Handler) handleListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListItems(r.Context())
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, items)
}

func (h *Handler) handleGetItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	item, err := h.service.GetItem(r.Context(), id)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, item)
}

func (h *Handler) handleAddCopy(w http.ResponseWriter, r *http.Request) {
	itemID, ok := pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		BranchID        uuid.UUID `json:"branch_id"`
		Barcode         string    `json:"barcode"`
		AcquisitionDate time.Time `json:"acquisition_date"`
	}
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cp, err := h.service.AddCopyToItem(r.Context(), itemID, req.BranchID, req.Barcode, req.AcquisitionDate)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, cp)
}

func (h *Handler) handleListCopies(w http.ResponseWriter, r *http.Request) {
	itemID, ok := pathID(w, r)
	if !ok {
		return
	}
	copies, err := h.service.ListCopies(r.Context(), itemID)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, copies)
}

func (h *Handler) handleGetCopy(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	cp, err := h.service.GetCopy(r.Context(), id)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, cp)
}

func (h *Handler) handleWithdrawCopy(w http.ResponseWriter, r *http.Request) {
	h.copyTransition(w, r, h.service.WithdrawCopy)
}

func (h *Handler) handleMarkOlderVersion(w http.ResponseWriter, r *http.Request) {
	h.copyTransition(w, r, h.service.MarkCopyOlderVersion)
}

func (h *Handler) copyTransition(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, id uuid.UUID) (*Copy, error)) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	cp, err := apply(r.Context(), id)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, cp)
}

func (h *Handler) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ItemID    uuid.UUID `json:"item_id"`
		Title     string    `json:"title"`
		ISSN      string    `json:"issn"`
		Frequency string    `json:"frequency"`
	}
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	serial, err := h.service.SubscribeSerial(r.Context(), req.ItemID, req.Title, req.ISSN, req.Frequency)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, serial)
}

func (h *Handler) handleListSerials(w http.ResponseWriter, r *http.Request) {
	serials, err := h.service.ListSerials(r.Context())
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, serials)
}

func (h *Handler) handleGetSerial(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	serial, err := h.service.GetSerial(r.Context(), id)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, serial)
}

func (h *Handler) handleActivateSerial(w http.ResponseWriter, r *http.Request) {
	h.serialTransition(w, r, h.service.RenewSerialSubscription)
}

func (h *Handler) handleDeactivateSerial(w http.ResponseWriter, r *http.Request) {
	h.serialTransition(w, r, h.service.UnsubscribeSerial)
}

func (h *Handler) serialTransition(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, id uuid.UUID) (*Serial, error)) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	serial, err := apply(r.Context(), id)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, serial)
}

func (h *Handler) handleReceiveIssue(w http.ResponseWriter, r *http.Request) {
	serialID, ok := pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		IssueNumber string     `json:"issue_number"`
		CopyID      *uuid.UUID `json:"copy_id"`
	}
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	issue, err := h.service.ReceiveSerialIssue(r.Context(), serialID, req.IssueNumber, req.CopyID)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, issue)
}

func (h *Handler) handleListIssues(w http.ResponseWriter, r *http.Request) {
	serialID, ok := pathID(w, r)
	if !ok {
		return
	}
	issues, err := h.service.ListSerialIssues(r.Context(), serialID)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, issues)
}

func (h *Handler) handleAttachCopy(w http.ResponseWriter, r *http.Request) {
	issueID, ok := pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		CopyID uuid.UUID `json:"copy_id"`
	}
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	issue, err := h.service.AttachCopyToIssue(r.Context(), issueID, req.CopyID)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, issue)
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := respond.PathID(r, "id")
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}
