package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/matemarket/matemarket/internal/auth"
	"github.com/matemarket/matemarket/internal/domain"
)

// ProductService is the slice of the catalog the HTTP layer needs.
type ProductService interface {
	CreateProduct(ctx context.Context, actor domain.Actor, in ProductInput) (*domain.Product, error)
	UpdateProduct(ctx context.Context, actor domain.Actor, id string, in ProductInput) (*domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	ListProducts(ctx context.Context, filter Filter) ([]domain.Product, error)
	AddImage(ctx context.Context, actor domain.Actor, productID string, image domain.Image) error
	DeleteProduct(ctx context.Context, actor domain.Actor, id string) error
	RestoreProduct(ctx context.Context, actor domain.Actor, id string) (*domain.Product, error)
	AddReview(ctx context.Context, actor domain.Actor, productID string, rating int, comment string) (*domain.Product, error)
	DeleteReview(ctx context.Context, actor domain.Actor, productID, reviewID string) error
}

type Handler struct {
	service ProductService
	logger  *slog.Logger
}

func NewHandler(service ProductService, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

type productRequest struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Price       decimal.Decimal    `json:"price"`
	Discount    decimal.Decimal    `json:"discount"`
	Stock       int                `json:"stock"`
	Category    domain.Category    `json:"category"`
	Attributes  []domain.Attribute `json:"attributes"`
	Images      []domain.Image     `json:"images"`
}

func (r productRequest) input() ProductInput {
	return ProductInput{
		Name:        r.Name,
		Description: r.Description,
		Price:       r.Price,
		Discount:    r.Discount,
		Stock:       r.Stock,
		Category:    r.Category,
		Attributes:  r.Attributes,
		Images:      r.Images,
	}
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFrom(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	product, err := h.service.CreateProduct(r.Context(), actor, req.input())
	if err != nil {
		h.writeServiceError(w, err, "failed to create product")
		return
	}

	h.logger.Info("product created", "product_id", product.ID, "category", product.Category)
	h.writeJSON(w, http.StatusCreated, product)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := Filter{
		Category: domain.Category(q.Get("category")),
		Name:     q.Get("name"),
		SortBy:   q.Get("sortBy"),
	}

	// Non-numeric price/rating params are ignored, matching a lenient
	// query surface rather than rejecting the whole request.
	if v, err := decimal.NewFromString(q.Get("minPrice")); err == nil {
		filter.MinPrice = &v
	}
	if v, err := decimal.NewFromString(q.Get("maxPrice")); err == nil {
		filter.MaxPrice = &v
	}
	if v, err := decimal.NewFromString(q.Get("minRating")); err == nil {
		filter.MinRating = &v
	}

	products, err := h.service.ListProducts(r.Context(), filter)
	if err != nil {
		h.writeServiceError(w, err, "failed to list products")
		return
	}

	h.writeJSON(w, http.StatusOK, products)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	product, err := h.service.GetProduct(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, err, "failed to get product")
		return
	}

	h.writeJSON(w, http.StatusOK, product)
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFrom(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	product, err := h.service.UpdateProduct(r.Context(), actor, r.PathValue("id"), req.input())
	if err != nil {
		h.writeServiceError(w, err, "failed to update product")
		return
	}

	h.logger.Info("product updated", "product_id", product.ID)
	h.writeJSON(w, http.StatusOK, product)
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFrom(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	id := r.PathValue("id")
	if err := h.service.DeleteProduct(r.Context(), actor, id); err != nil {
		h.writeServiceError(w, err, "failed to delete product")
		return
	}

	h.logger.Info("product deleted", "product_id", id)
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "product deleted"})
}

func (h *Handler) HandleRestore(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFrom(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	product, err := h.service.RestoreProduct(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, err, "failed to restore product")
		return
	}

	h.logger.Info("product restored", "product_id", product.ID)
	h.writeJSON(w, http.StatusOK, product)
}

type addImageRequest struct {
	URL string `json:"url"`
	Alt string `json:"alt"`
}

func (h *Handler) HandleAddImage(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFrom(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req addImageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id := r.PathValue("id")
	if err := h.service.AddImage(r.Context(), actor, id, domain.Image{URL: req.URL, Alt: req.Alt}); err != nil {
		h.writeServiceError(w, err, "failed to add product image")
		return
	}

	h.logger.Info("product image added", "product_id", id)
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "image added"})
}

type addReviewRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

func (h *Handler) HandleAddReview(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFrom(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req addReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	product, err := h.service.AddReview(r.Context(), actor, r.PathValue("id"), req.Rating, req.Comment)
	if err != nil {
		h.writeServiceError(w, err, "failed to add review")
		return
	}

	h.logger.Info("review added", "product_id", product.ID, "user_id", actor.ID)
	h.writeJSON(w, http.StatusCreated, product)
}

func (h *Handler) HandleDeleteReview(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFrom(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	productID := r.PathValue("productId")
	reviewID := r.PathValue("reviewId")
	if err := h.service.DeleteReview(r.Context(), actor, productID, reviewID); err != nil {
		h.writeServiceError(w, err, "failed to delete review")
		return
	}

	h.logger.Info("review deleted", "product_id", productID, "review_id", reviewID)
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "review deleted"})
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error, logMsg string) {
	switch {
	case errors.Is(err, domain.ErrProductNotFound), errors.Is(err, domain.ErrReviewNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		h.writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, domain.ErrInvalidCategory),
		errors.Is(err, domain.ErrInvalidPrice),
		errors.Is(err, domain.ErrInvalidProductInput),
		errors.Is(err, domain.ErrInvalidRating),
		errors.Is(err, domain.ErrDuplicateReview):
		h.writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error(logMsg, "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
