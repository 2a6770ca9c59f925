package notifications

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bidmaster/bidmaster/internal/api"
	"github.com/bidmaster/bidmaster/internal/api/auth"
)

var _ Handler = (*HandlerImpl)(nil)

type Handler interface {
	ListNotifications(w http.ResponseWriter, r *http.Request)
	MarkRead(w http.ResponseWriter, r *http.Request)
	SavePushToken(w http.ResponseWriter, r *http.Request)
}

type HandlerImpl struct {
	repo   NotificationRepo
	logger *slog.Logger
}

func NewHandlerImpl(repo NotificationRepo, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{repo: repo, logger: logger}
}

// ListNotifications godoc
// @Summary      List Notifications
// @Description  Returns the authenticated user's notification log, newest first.
// @Tags         Notifications
// @Produce      json
// @Param        read  query  bool  false  "Filter by read flag"
// @Param        limit query  int   false  "Max rows (default 50)"
// @Security     BearerAuth
// @Router       /notifications [get]
func (h *HandlerImpl) ListNotifications(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "ListNotifications"))

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	var read *bool
	if v := r.URL.Query().Get("read"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid read filter")
			return
		}
		read = &parsed
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}

	items, err := h.repo.ListForUser(ctx, userID, read, limit)
	if err != nil {
		l.ErrorContext(ctx, "Failed to list notifications", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to fetch notifications")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    items,
	})
}

// MarkRead godoc
// @Summary      Mark Notification Read
// @Description  Flips the read flag on one of the caller's notifications.
// @Tags         Notifications
// @Produce      json
// @Security     BearerAuth
// @Router       /notifications/read/{id} [patch]
func (h *HandlerImpl) MarkRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "MarkRead"))

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	notificationID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid notification ID")
		return
	}

	n, err := h.repo.MarkRead(ctx, notificationID, userID)
	if err != nil {
		l.WarnContext(ctx, "Failed to mark notification read", slog.Any("error", err))
		api.DomainErrorResponse(w, r, err, "Failed to update notification")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Notification marked as read",
		"data":    n,
	})
}

type saveTokenRequest struct {
	Token string `json:"fcm_token"`
}

// SavePushToken godoc
// @Summary      Register Push Token
// @Description  Upserts a device push token for the authenticated user.
// @Tags         Notifications
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Router       /notifications/token [post]
func (h *HandlerImpl) SavePushToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "SavePushToken"))

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req saveTokenRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Token == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, "FCM token is required")
		return
	}

	if err := h.repo.SaveToken(ctx, userID, req.Token); err != nil {
		l.ErrorContext(ctx, "Failed to save push token", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to save token")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Push token saved successfully",
	})
}
