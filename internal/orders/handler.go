package orders

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/matemarket/matemarket/internal/auth"
	"github.com/matemarket/matemarket/internal/domain"
)

// OrderService is the slice of the order assembler the HTTP layer needs.
type OrderService interface {
	Create(ctx context.Context, actor domain.Actor, in CreateInput) (*domain.Order, error)
	Get(ctx context.Context, actor domain.Actor, id string) (*domain.Order, error)
	ListForClient(ctx context.Context, actor domain.Actor) ([]domain.Order, error)
	UpdateState(ctx context.Context, actor domain.Actor, id string, next domain.OrderState) (*domain.Order, error)
	Delete(ctx context.Context, actor domain.Actor, id string) error
	Restore(ctx context.Context, actor domain.Actor, id string) (*domain.Order, error)
}

type Handler struct {
	service OrderService
	logger  *slog.Logger
}

func NewHandler(service OrderService, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

type createItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type createOrderRequest struct {
	Items           []createItemRequest    `json:"items"`
	DeliveryMethod  domain.DeliveryMethod  `json:"delivery_method"`
	ShippingAddress domain.ShippingAddress `json:"shipping_address"`
}

func (r createOrderRequest) validate() string {
	addr := r.ShippingAddress
	switch {
	case addr.Street == "":
		return "shipping address street is required"
	case addr.Number == "":
		return "shipping address number is required"
	case addr.Postal == "":
		return "shipping address postal code is required"
	case addr.City == "":
		return "shipping address city is required"
	case addr.Province == "":
		return "shipping address province is required"
	}
	return ""
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFrom(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		h.writeError(w, http.StatusBadRequest, msg)
		return
	}

	items := make([]ItemInput, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, ItemInput{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	order, err := h.service.Create(r.Context(), actor, CreateInput{
		Items:           items,
		DeliveryMethod:  req.DeliveryMethod,
		ShippingAddress: req.ShippingAddress,
	})
	if err != nil {
		h.writeServiceError(w, err, "failed to create order")
		return
	}

	h.logger.Info("order created", "order_id", order.ID, "client_id", order.ClientID, "total", order.Total)
	h.writeJSON(w, http.StatusCreated, order)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFrom(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	order, err := h.service.Get(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, err, "failed to get order")
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFrom(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	list, err := h.service.ListForClient(r.Context(), actor)
	if err != nil {
		h.writeServiceError(w, err, "failed to list orders")
		return
	}

	h.writeJSON(w, http.StatusOK, list)
}

type updateStateRequest struct {
	State domain.OrderState `json:"state"`
}

func (h *Handler) HandleUpdateState(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFrom(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req updateStateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.service.UpdateState(r.Context(), actor, r.PathValue("id"), req.State)
	if err != nil {
		h.writeServiceError(w, err, "failed to update order state")
		return
	}

	h.logger.Info("order state updated", "order_id", order.ID, "state", order.State)
	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFrom(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	id := r.PathValue("id")
	if err := h.service.Delete(r.Context(), actor, id); err != nil {
		h.writeServiceError(w, err, "failed to delete order")
		return
	}

	h.logger.Info("order deleted", "order_id", id)
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "order deleted"})
}

func (h *Handler) HandleRestore(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFrom(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	order, err := h.service.Restore(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, err, "failed to restore order")
		return
	}

	h.logger.Info("order restored", "order_id", order.ID)
	h.writeJSON(w, http.StatusOK, order)
}

// writeServiceError maps domain errors onto HTTP statuses. Expected
// business outcomes keep their message; anything else is a 500 with the
// detail kept out of the response.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error, logMsg string) {
	switch {
	case errors.Is(err, domain.ErrOrderNotFound), errors.Is(err, domain.ErrProductNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		h.writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, domain.ErrEmptyItemList),
		errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrInvalidDeliveryMethod),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrInsufficientStock):
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
