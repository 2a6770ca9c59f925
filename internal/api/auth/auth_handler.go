package auth

import (
	"log/slog"
	"net/http"

	"github.com/bidmaster/bidmaster/internal/api"
)

var _ Handler = (*HandlerImpl)(nil)

type Handler interface {
	Register(w http.ResponseWriter, r *http.Request)
	Login(w http.ResponseWriter, r *http.Request)
	AdminLogin(w http.ResponseWriter, r *http.Request)
	SendOTP(w http.ResponseWriter, r *http.Request)
	VerifyOTP(w http.ResponseWriter, r *http.Request)
	ExternalLogin(w http.ResponseWriter, r *http.Request)
	GetProfile(w http.ResponseWriter, r *http.Request)
	UpdateProfile(w http.ResponseWriter, r *http.Request)
}

type HandlerImpl struct {
	service Service
	logger  *slog.Logger
}

func NewHandlerImpl(service Service, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{service: service, logger: logger}
}

// Register godoc
// @Summary      Register
// @Description  Creates a buyer or seller account and returns an access token.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Router       /auth/register [post]
func (h *HandlerImpl) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "Register"))

	var req RegisterRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.service.Register(ctx, req)
	if err != nil {
		l.WarnContext(ctx, "Registration failed", slog.Any("error", err))
		api.DomainErrorResponse(w, r, err, "Registration failed")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusCreated, resp)
}

// Login godoc
// @Summary      Login
// @Description  Password login by phone or email.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Router       /auth/login [post]
func (h *HandlerImpl) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "Login"))

	var req LoginRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.service.Login(ctx, req)
	if err != nil {
		l.WarnContext(ctx, "Login failed", slog.Any("error", err))
		api.DomainErrorResponse(w, r, err, "Login failed")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, resp)
}

// AdminLogin godoc
// @Summary      Admin Login
// @Description  Email and password login for the moderation console.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Router       /admin/login [post]
func (h *HandlerImpl) AdminLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "AdminLogin"))

	var req LoginRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.service.AdminLogin(ctx, req)
	if err != nil {
		l.WarnContext(ctx, "Admin login failed", slog.Any("error", err))
		api.DomainErrorResponse(w, r, err, "Login failed")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, resp)
}

// SendOTP godoc
// @Summary      Send OTP
// @Description  Issues a one-time code for the given Iraqi phone number.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Router       /auth/send-otp [post]
func (h *HandlerImpl) SendOTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "SendOTP"))

	var req SendOTPRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	devCode, err := h.service.SendOTP(ctx, req.Phone)
	if err != nil {
		l.WarnContext(ctx, "Failed to send OTP", slog.Any("error", err))
		api.DomainErrorResponse(w, r, err, "Failed to send OTP")
		return
	}

	body := map[string]interface{}{
		"success": true,
		"message": "OTP sent successfully",
	}
	if devCode != "" {
		body["otp"] = devCode
	}
	api.WriteJSONResponse(w, r, http.StatusOK, body)
}

// VerifyOTP godoc
// @Summary      Verify OTP
// @Description  Verifies the code and logs the user in, creating the account on first login.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Router       /auth/verify-otp [post]
func (h *HandlerImpl) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "VerifyOTP"))

	var req VerifyOTPRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.service.VerifyOTP(ctx, req.Phone, req.OTP)
	if err != nil {
		l.WarnContext(ctx, "OTP verification failed", slog.Any("error", err))
		api.DomainErrorResponse(w, r, err, "OTP verification failed")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, resp)
}

// ExternalLogin godoc
// @Summary      External Login
// @Description  Exchanges an external-identity ID token for an app access token.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Router       /auth/external-login [post]
func (h *HandlerImpl) ExternalLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "ExternalLogin"))

	var req ExternalLoginRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.service.ExternalLogin(ctx, req)
	if err != nil {
		l.WarnContext(ctx, "External login failed", slog.Any("error", err))
		api.DomainErrorResponse(w, r, err, "External login failed")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, resp)
}

// GetProfile godoc
// @Summary      Get Profile
// @Tags         Auth
// @Produce      json
// @Security     BearerAuth
// @Router       /auth/profile [get]
func (h *HandlerImpl) GetProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "GetProfile"))

	userID, ok := UserIDFromContext(ctx)
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	user, err := h.service.GetProfile(ctx, userID)
	if err != nil {
		l.ErrorContext(ctx, "Failed to load profile", slog.Any("error", err))
		api.DomainErrorResponse(w, r, err, "Failed to load profile")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, map[string]interface{}{
		"success": true,
		"user":    user,
	})
}

// UpdateProfile godoc
// @Summary      Update Profile
// @Description  Updates name and/or phone. A new phone is re-validated and must be unused.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Router       /auth/profile [patch]
func (h *HandlerImpl) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "UpdateProfile"))

	userID, ok := UserIDFromContext(ctx)
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req UpdateProfileRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.service.UpdateProfile(ctx, userID, req)
	if err != nil {
		l.WarnContext(ctx, "Failed to update profile", slog.Any("error", err))
		api.DomainErrorResponse(w, r, err, "Failed to update profile")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Profile updated successfully",
		"user":    user,
	})
}
