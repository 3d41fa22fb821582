// internal/membership/handler.go
package membership

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"libraryflow/internal/auth"
	"libraryflow/internal/respond"
)

type Handler struct {
	service   Service
	jwtSecret string
	tokenTTL  time.Duration
}

func NewHandler(service Service, jwtSecret string, tokenTTL time.Duration) *Handler {
	return &Handler{service: service, jwtSecret: jwtSecret, tokenTTL: tokenTTL}
}

// PublicRoutes registers patron self-registration and staff login.
func (h *Handler) PublicRoutes(r chi.Router) {
	r.Post("/patrons", h.handleRegisterPatron)
	r.Post("/auth/login", h.handleLogin)
}

// StaffRoutes registers the endpoints that need an authenticated staff member.
// Staff and branch administration additionally needs a manager.
func (h *Handler) StaffRoutes(r chi.Router) {
	r.Get("/patrons", h.handleListPatrons)
	r.Get("/patrons/{id}", h.handleGetPatron)
	r.Post("/patrons/{id}/tier", h.handleChangeTier)
	r.Post("/patrons/{id}/suspend", h.patronTransition(h.service.SuspendPatron))
	r.Post("/patrons/{id}/reinstate", h.patronTransition(h.service.ReinstatePatron))

	r.Get("/staff", h.handleListStaff)
	r.Get("/staff/{id}", h.handleGetStaff)
	r.Get("/branches", h.handleListBranches)
	r.Get("/branches/{id}", h.handleGetBranch)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRole(string(RoleManager), string(RoleAdmin)))

		r.Post("/staff", h.handleHireStaff)
		r.Post("/staff/{id}/branch", h.handleAssignStaff)
		r.Post("/staff/{id}/deactivate", h.handleDeactivateStaff)
		r.Delete("/staff/{id}", h.handleDeleteStaff)

		r.Post("/branches", h.handleOpenBranch)
		r.Post("/branches/{id}/manager", h.handleAssignManager)
		r.Post("/branches/{id}/close", h.handleCloseBranch)
		r.Delete("/branches/{id}", h.handleDeleteBranch)
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		respond.Error(w, http.StatusBadRequest, "email and password required")
		return
	}

	staff, err := h.service.AuthenticateStaff(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	token, err := auth.GenerateToken(h.jwtSecret, h.tokenTTL, staff.ID, staff.Email, string(staff.Role))
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"token": token, "staff": staff})
}

func (h *Handler) handleRegisterPatron(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		Name  string `json:"name"`
		Tier  string `json:"membership_tier"`
	}
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	patron, err := h.service.RegisterPatron(r.Context(), req.Email, req.Name, req.Tier)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, patron)
}

func (h *Handler) handleListPatrons(w http.ResponseWriter, r *http.Request) {
	patrons, err := h.service.ListPatrons(r.Context())
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, patrons)
}

func (h *Handler) handleGetPatron(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	patron, err := h.service.GetPatron(r.Context(), id)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, patron)
}

func (h *Handler) handleChangeTier(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		Tier string `json:"membership_tier"`
	}
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	patron, err := h.service.ChangePatronTier(r.Context(), id, req.Tier)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, patron)
}

func (h *Handler) patronTransition(apply func(context.Context, uuid.UUID) (*Patron, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		patron, err := apply(r.Context(), id)
		if err != nil {
			respond.Fail(w, r, err)
			return
		}
		respond.JSON(w, http.StatusOK, patron)
	}
}

func (h *Handler) handleHireStaff(w http.ResponseWriter, r *http.Request) {
	var req HireStaffInput
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	staff, err := h.service.HireStaff(r.Context(), req)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, staff)
}

func (h *Handler) handleListStaff(w http.ResponseWriter, r *http.Request) {
	staff, err := h.service.ListStaff(r.Context())
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, staff)
}

func (h *Handler) handleGetStaff(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	staff, err := h.service.GetStaff(r.Context(), id)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, staff)
}

func (h *Handler) handleAssignStaff(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		BranchID uuid.UUID `json:"branch_id"`
	}
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	staff, err := h.service.AssignStaffToBranch(r.Context(), id, req.BranchID)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, staff)
}

func (h *Handler) handleDeactivateStaff(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	staff, err := h.service.DeactivateStaff(r.Context(), id)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, staff)
}

func (h *Handler) handleDeleteStaff(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteStaff(r.Context(), id); err != nil {
		respond.Fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleOpenBranch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name    string `json:"name"`
		Address string `json:"address"`
	}
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	branch, err := h.service.OpenBranch(r.Context(), req.Name, req.Address)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, branch)
}

func (h *Handler) handleListBranches(w http.ResponseWriter, r *http.Request) {
	branches, err := h.service.ListBranches(r.Context())
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, branches)
}

func (h *Handler) handleGetBranch(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	branch, err := h.service.GetBranch(r.Context(), id)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, branch)
}

func (h *Handler) handleAssignManager(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		StaffID uuid.UUID `json:"staff_id"`
	}
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	branch, err := h.service.AssignBranchManager(r.Context(), id, req.StaffID)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, branch)
}

func (h *Handler) handleCloseBranch(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	branch, err := h.service.CloseBranch(r.Context(), id)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, branch)
}

func (h *Handler) handleDeleteBranch(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteBranch(r.Context(), id); err != nil {
		respond.Fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// fail adds the statuses of the login and registration errors that carry no
// domain kind.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrRateLimited):
		respond.Error(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, ErrInvalidCredentials):
		respond.Error(w, http.StatusUnauthorized, err.Error())
	default:
		respond.Fail(w, r, err)
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := respond.PathID(r, "id")
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}
