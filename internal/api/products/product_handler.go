package products

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
	CreateProduct(w http.ResponseWriter, r *http.Request)
	ListProducts(w http.ResponseWriter, r *http.Request)
	GetProduct(w http.ResponseWriter, r *http.Request)
	ListMyProducts(w http.ResponseWriter, r *http.Request)
	PlaceBid(w http.ResponseWriter, r *http.Request)
	ListCategories(w http.ResponseWriter, r *http.Request)
}

type HandlerImpl struct {
	service Service
	logger  *slog.Logger
}

func NewHandlerImpl(service Service, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{service: service, logger: logger}
}

// CreateProduct godoc
// @Summary      Submit Product
// @Description  Submits a new auction lot for moderation. Seller role required.
// @Tags         Products
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Router       /products [post]
func (h *HandlerImpl) CreateProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "CreateProduct"))

	sellerID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req CreateProductRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	product, err := h.service.Create(ctx, sellerID, req)
	if err != nil {
		l.WarnContext(ctx, "Failed to create product", slog.Any("error", err))
		api.DomainErrorResponse(w, r, err, "Failed to create product")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusCreated, map[string]interface{}{
		"success": true,
		"message": "Product submitted for approval",
		"data":    product,
	})
}

// ListProducts godoc
// @Summary      List Products
// @Description  Approved auctions only, newest first. Supports category, search and pagination.
// @Tags         Products
// @Produce      json
// @Param        category query string false "Category ID"
// @Param        search   query string false "Title substring"
// @Param        limit    query int    false "Page size (default 20, max 100)"
// @Param        offset   query int    false "Page offset"
// @Router       /products [get]
func (h *HandlerImpl) ListProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "ListProducts"))

	filter := ListFilter{Search: r.URL.Query().Get("search")}
	if v := r.URL.Query().Get("category"); v != "" {
		categoryID, err := uuid.Parse(v)
		if err != nil {
			api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid category ID")
			return
		}
		filter.CategoryID = &categoryID
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			filter.Limit = parsed
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			filter.Offset = parsed
		}
	}

	items, err := h.service.List(ctx, filter)
	if err != nil {
		l.ErrorContext(ctx, "Failed to list products", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to fetch products")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    items,
	})
}

// GetProduct godoc
// @Summary      Product Detail
// @Description  One lot with seller and bidder names, hours left and live flag.
// @Tags         Products
// @Produce      json
// @Router       /products/{id} [get]
func (h *HandlerImpl) GetProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "GetProduct"))

	productID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid product ID")
		return
	}

	detail, err := h.service.GetDetail(ctx, productID)
	if err != nil {
		l.WarnContext(ctx, "Failed to load product", slog.Any("error", err))
		api.DomainErrorResponse(w, r, err, "Failed to fetch product")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    detail,
	})
}

// ListMyProducts godoc
// @Summary      My Products
// @Description  The authenticated seller's lots with an optional status filter.
// @Tags         Products
// @Produce      json
// @Param        status query string false "pending|approved|rejected|sold"
// @Security     BearerAuth
// @Router       /products/mine [get]
func (h *HandlerImpl) ListMyProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "ListMyProducts"))

	sellerID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	items, err := h.service.ListMine(ctx, sellerID, r.URL.Query().Get("status"))
	if err != nil {
		l.WarnContext(ctx, "Failed to list seller products", slog.Any("error", err))
		api.DomainErrorResponse(w, r, err, "Failed to fetch products")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    items,
	})
}

// PlaceBid godoc
// @Summary      Place Bid
// @Description  Accepts a bid strictly above the current price on a live approved auction.
// @Tags         Products
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Router       /products/{id}/bid [post]
func (h *HandlerImpl) PlaceBid(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "PlaceBid"))

	bidderID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	productID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid product ID")
		return
	}

	var req PlaceBidRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	product, err := h.service.PlaceBid(ctx, productID, bidderID, req.Amount)
	if err != nil {
		l.WarnContext(ctx, "Bid rejected", slog.Any("error", err))
		api.DomainErrorResponse(w, r, err, "Failed to place bid")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Bid placed successfully",
		"data":    product,
	})
}

// ListCategories godoc
// @Summary      List Categories
// @Tags         Products
// @Produce      json
// @Router       /categories [get]
func (h *HandlerImpl) ListCategories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "ListCategories"))

	items, err := h.service.ListCategories(ctx)
	if err != nil {
		l.ErrorContext(ctx, "Failed to list categories", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to fetch categories")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    items,
	})
}
