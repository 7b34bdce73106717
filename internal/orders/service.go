package orders

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/matemarket/matemarket/internal/database"
	"github.com/matemarket/matemarket/internal/domain"
	"github.com/matemarket/matemarket/internal/inventory"
	"github.com/matemarket/matemarket/internal/pricing"
)

// Publisher emits domain events after a transaction commits. Satisfied by
// *messaging.Producer; nil disables publishing.
type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

type Service struct {
	db       *sql.DB
	repo     *Repository
	ledger   *inventory.Ledger
	producer Publisher
	logger   *slog.Logger
}

func NewService(db *sql.DB, repo *Repository, ledger *inventory.Ledger, producer Publisher, logger *slog.Logger) *Service {
	return &Service{
		db:       db,
		repo:     repo,
		ledger:   ledger,
		producer: producer,
		logger:   logger,
	}
}

type ItemInput struct {
	ProductID string
	Quantity  int
}

type CreateInput struct {
	Items           []ItemInput
	DeliveryMethod  domain.DeliveryMethod
	ShippingAddress domain.ShippingAddress
}

// Create places an order as a single transaction: every line item is
// reserved against current stock, unit prices are captured at reservation
// time, and the order is persisted in state pending. Any failure rolls the
// whole reservation back. Event publishing happens after commit and never
// fails the order.
func (s *Service) Create(ctx context.Context, actor domain.Actor, in CreateInput) (*domain.Order, error) {
	if len(in.Items) == 0 {
		return nil, domain.ErrEmptyItemList
	}
	for _, item := range in.Items {
		if item.Quantity < 1 {
			return nil, domain.ErrInvalidQuantity
		}
	}

	method := in.DeliveryMethod
	if method == "" {
		method = domain.DeliveryStandard
	}
	if !method.Valid() {
		return nil, domain.ErrInvalidDeliveryMethod
	}

	order := &domain.Order{
		ClientID:        actor.ID,
		State:           domain.OrderStatePending,
		DeliveryMethod:  method,
		ShippingAddress: in.ShippingAddress,
	}

	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		// Re-runs from scratch on a serialization retry, so rebuild the
		// line items each attempt.
		order.Items = order.Items[:0]
		lineTotals := make([]decimal.Decimal, 0, len(in.Items))

		for _, item := range in.Items {
			unitPrice, err := s.ledger.CheckAndReserve(ctx, tx, item.ProductID, item.Quantity)
			if err != nil {
				return err
			}
			order.Items = append(order.Items, domain.OrderItem{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				UnitPrice: unitPrice,
			})
			lineTotals = append(lineTotals, pricing.LineTotal(unitPrice, item.Quantity))
		}

		order.Total = pricing.OrderTotal(lineTotals)
		return s.repo.InsertTx(ctx, tx, order)
	})
	if err != nil {
		return nil, err
	}

	s.publishCreated(ctx, actor, order)

	return order, nil
}

// publishCreated is best-effort: the order has already committed, so a
// broker failure is logged and swallowed.
func (s *Service) publishCreated(ctx context.Context, actor domain.Actor, order *domain.Order) {
	if s.producer == nil {
		return
	}
	event := domain.OrderCreatedEvent{
		OrderID:        order.ID,
		ClientID:       order.ClientID,
		ClientEmail:    actor.Email,
		Items:          order.Items,
		Total:          order.Total,
		DeliveryMethod: order.DeliveryMethod,
		Timestamp:      time.Now().UTC(),
	}
	if err := s.producer.Publish(ctx, order.ID, event); err != nil {
		s.logger.Error("failed to publish order created event", "error", err, "order_id", order.ID)
	}
}

// Get returns the order if the requester owns it or is an administrator.
func (s *Service) Get(ctx context.Context, actor domain.Actor, id string) (*domain.Order, error) {
	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrOrderNotFound
	}
	if order.ClientID != actor.ID && !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	return order, nil
}

func (s *Service) ListForClient(ctx context.Context, actor domain.Actor) ([]domain.Order, error) {
	return s.repo.ListByClient(ctx, actor.ID)
}

// UpdateState drives the order state machine. Admin only; transitions are
// validated under a row lock against the current state. Inventory is never
// touched here, cancellation included.
func (s *Service) UpdateState(ctx context.Context, actor domain.Actor, id string, next domain.OrderState) (*domain.Order, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	if !next.Valid() {
		return nil, domain.ErrInvalidTransition
	}

	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		current, err := s.repo.StateForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if !current.CanTransition(next) {
			return domain.ErrInvalidTransition
		}
		return s.repo.SetState(ctx, tx, id, next)
	})
	if err != nil {
		return nil, err
	}

	return s.repo.GetByID(ctx, id)
}

// Delete soft-deletes the order; owner or admin.
func (s *Service) Delete(ctx context.Context, actor domain.Actor, id string) error {
	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if order == nil {
		return domain.ErrOrderNotFound
	}
	if order.ClientID != actor.ID && !actor.IsAdmin() {
		return domain.ErrForbidden
	}
	return s.repo.SoftDelete(ctx, id)
}

// Restore recovers a soft-deleted order. Admin only.
func (s *Service) Restore(ctx context.Context, actor domain.Actor, id string) (*domain.Order, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	if err := s.repo.Restore(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}
