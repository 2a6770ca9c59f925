package admin

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bidmaster/bidmaster/internal/api"
	"github.com/bidmaster/bidmaster/internal/types"
)

var _ Handler = (*HandlerImpl)(nil)

type Handler interface {
	ListUsers(w http.ResponseWriter, r *http.Request)
	ApproveUser(w http.ResponseWriter, r *http.Request)
	BlockUser(w http.ResponseWriter, r *http.Request)
	DeleteUser(w http.ResponseWriter, r *http.Request)
	ListPendingProducts(w http.ResponseWriter, r *http.Request)
	ApproveProduct(w http.ResponseWriter, r *http.Request)
	RejectProduct(w http.ResponseWriter, r *http.Request)
	Dashboard(w http.ResponseWriter, r *http.Request)
}

type HandlerImpl struct {
	service Service
	logger  *slog.Logger
}

func NewHandlerImpl(service Service, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{service: service, logger: logger}
}

func urlID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "id"))
}

// ListUsers godoc
// @Summary      List Users
// @Description  Non-admin accounts, optionally filtered by status.
// @Tags         Admin
// @Produce      json
// @Param        status query string false "pending|approved|blocked"
// @Security     BearerAuth
// @Router       /admin/users [get]
func (h *HandlerImpl) ListUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "ListUsers"))

	items, err := h.service.ListUsers(ctx, r.URL.Query().Get("status"))
	if err != nil {
		l.WarnContext(ctx, "Failed to list users", slog.Any("error", err))
		api.DomainErrorResponse(w, r, err, "Failed to fetch users")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    items,
	})
}

// ApproveUser godoc
// @Summary      Approve User
// @Tags         Admin
// @Produce      json
// @Security     BearerAuth
// @Router       /admin/users/{id}/approve [patch]
func (h *HandlerImpl) ApproveUser(w http.ResponseWriter, r *http.Request) {
	h.setUserStatus(w, r, "ApproveUser", h.service.ApproveUser, "User approved")
}

// BlockUser godoc
// @Summary      Block User
// @Tags         Admin
// @Produce      json
// @Security     BearerAuth
// @Router       /admin/users/{id}/block [patch]
func (h *HandlerImpl) BlockUser(w http.ResponseWriter, r *http.Request) {
	h.setUserStatus(w, r, "BlockUser", h.service.BlockUser, "User blocked")
}

func (h *HandlerImpl) setUserStatus(w http.ResponseWriter, r *http.Request, name string,
	op func(ctx context.Context, id uuid.UUID) (*types.User, error), message string) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", name))

	id, err := urlID(r)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid user ID")
		return
	}

	user, err := op(ctx, id)
	if err != nil {
		l.WarnContext(ctx, "Failed to update user status", slog.Any("error", err))
		api.DomainErrorResponse(w, r, err, "Failed to update user")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": message,
		"data":    user,
	})
}

// DeleteUser godoc
// @Summary      Delete User
// @Tags         Admin
// @Produce      json
// @Security     BearerAuth
// @Router       /admin/users/{id} [delete]
func (h *HandlerImpl) DeleteUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "DeleteUser"))

	id, err := urlID(r)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid user ID")
		return
	}

	if err := h.service.DeleteUser(ctx, id); err != nil {
		l.WarnContext(ctx, "Failed to delete user", slog.Any("error", err))
		api.DomainErrorResponse(w, r, err, "Failed to delete user")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "User deleted",
	})
}

// ListPendingProducts godoc
// @Summary      Moderation Queue
// @Description  Pending lots with seller details, oldest first.
// @Tags         Admin
// @Produce      json
// @Security     BearerAuth
// @Router       /admin/products/pending [get]
func (h *HandlerImpl) ListPendingProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "ListPendingProducts"))

	items, err := h.service.ListPendingProducts(ctx)
	if err != nil {
		l.ErrorContext(ctx, "Failed to list pending products", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to fetch products")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    items,
	})
}

// ApproveProduct godoc
// @Summary      Approve Product
// @Description  Publishes a pending lot and restarts its auction window.
// @Tags         Admin
// @Produce      json
// @Security     BearerAuth
// @Router       /admin/products/{id}/approve [patch]
func (h *HandlerImpl) ApproveProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "ApproveProduct"))

	id, err := urlID(r)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid product ID")
		return
	}

	product, err := h.service.ApproveProduct(ctx, id)
	if err != nil {
		l.WarnContext(ctx, "Failed to approve product", slog.Any("error", err))
		api.DomainErrorResponse(w, r, err, "Failed to approve product")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Product approved",
		"data":    product,
	})
}

type rejectProductRequest struct {
	Reason string `json:"reason,omitempty"`
}

// RejectProduct godoc
// @Summary      Reject Product
// @Description  Rejects a pending lot with an optional reason relayed to the seller.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Router       /admin/products/{id}/reject [patch]
func (h *HandlerImpl) RejectProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "RejectProduct"))

	id, err := urlID(r)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid product ID")
		return
	}

	var req rejectProductRequest
	if r.ContentLength > 0 {
		if err := api.DecodeJSONBody(w, r, &req); err != nil {
			api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
			return
		}
	}

	product, err := h.service.RejectProduct(ctx, id, req.Reason)
	if err != nil {
		l.WarnContext(ctx, "Failed to reject product", slog.Any("error", err))
		api.DomainErrorResponse(w, r, err, "Failed to reject product")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Product rejected",
		"data":    product,
	})
}

// Dashboard godoc
// @Summary      Dashboard Stats
// @Tags         Admin
// @Produce      json
// @Security     BearerAuth
// @Router       /admin/dashboard [get]
func (h *HandlerImpl) Dashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "Dashboard"))

	stats, err := h.service.Dashboard(ctx)
	if err != nil {
		l.ErrorContext(ctx, "Failed to load dashboard stats", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to fetch stats")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    stats,
	})
}
