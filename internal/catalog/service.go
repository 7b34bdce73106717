package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/matemarket/matemarket/internal/database"
	"github.com/matemarket/matemarket/internal/domain"
	"github.com/matemarket/matemarket/internal/pricing"
)

// Alerter raises out-of-band operator alerts; sends are best-effort.
type Alerter interface {
	Alert(ctx context.Context, subject, body string)
}

type Service struct {
	db     *sql.DB
	repo   *Repository
	alerts Alerter
	logger *slog.Logger
}

func NewService(db *sql.DB, repo *Repository, alerts Alerter, logger *slog.Logger) *Service {
	return &Service{
		db:     db,
		repo:   repo,
		alerts: alerts,
		logger: logger,
	}
}

type ProductInput struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Discount    decimal.Decimal
	Stock       int
	Category    domain.Category
	Attributes  []domain.Attribute
	Images      []domain.Image
}

func (in ProductInput) validate() error {
	if strings.TrimSpace(in.Name) == "" || !in.Price.IsPositive() || in.Stock < 0 {
		return domain.ErrInvalidProductInput
	}
	if in.Discount.IsNegative() || in.Discount.GreaterThan(decimal.NewFromInt(100)) {
		return domain.ErrInvalidProductInput
	}
	return nil
}

// CreateProduct creates a product after the category price-range guard.
// An out-of-range effective price alerts the operators and rejects the
// product.
func (s *Service) CreateProduct(ctx context.Context, actor domain.Actor, in ProductInput) (*domain.Product, error) {
	if !actor.CanManageCatalog() {
		return nil, domain.ErrForbidden
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	if err := s.guardPrice(ctx, in); err != nil {
		return nil, err
	}

	product := &domain.Product{
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		Discount:    in.Discount,
		Stock:       in.Stock,
		Category:    in.Category,
		Attributes:  in.Attributes,
		Images:      in.Images,
		Scoring:     decimal.Zero,
	}

	if err := s.repo.Insert(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

// guardPrice enforces the category's effective-price band, alerting on
// every rejection.
func (s *Service) guardPrice(ctx context.Context, in ProductInput) error {
	limits, ok := domain.PriceRangeFor(in.Category)
	if !ok {
		s.alerts.Alert(ctx, "Product creation attempt with invalid category",
			fmt.Sprintf("Unrecognized category %q for product %q.", in.Category, in.Name))
		return domain.ErrInvalidCategory
	}

	effective := pricing.EffectivePrice(in.Price, in.Discount)
	if !limits.Contains(effective) {
		s.alerts.Alert(ctx, "Product price outside category range",
			fmt.Sprintf("Suspicious attempt:\nProduct: %s\nCategory: %s\nBase price: %s\nDiscount: %s%%\nEffective price: %s\nAllowed range: %s - %s",
				in.Name, in.Category, in.Price, in.Discount,
				effective.StringFixed(2), limits.Min, limits.Max))
		return &domain.PriceOutOfRangeError{
			Category:  in.Category,
			Effective: effective,
			Range:     limits,
		}
	}
	return nil
}

// UpdateProduct re-runs the price guard whenever price, discount or
// category change, so listed effective prices stay inside their band.
func (s *Service) UpdateProduct(ctx context.Context, actor domain.Actor, id string, in ProductInput) (*domain.Product, error) {
	if !actor.CanManageCatalog() {
		return nil, domain.ErrForbidden
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, domain.ErrProductNotFound
	}

	repriced := !in.Price.Equal(current.Price) ||
		!in.Discount.Equal(current.Discount) ||
		in.Category != current.Category
	if repriced {
		if err := s.guardPrice(ctx, in); err != nil {
			return nil, err
		}
	}

	current.Name = in.Name
	current.Description = in.Description
	current.Price = in.Price
	current.Discount = in.Discount
	current.Category = in.Category
	current.Attributes = in.Attributes
	current.Images = in.Images

	if err := s.repo.Update(ctx, current); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, domain.ErrProductNotFound
	}
	return product, nil
}

func (s *Service) ListProducts(ctx context.Context, filter Filter) ([]domain.Product, error) {
	return s.repo.List(ctx, filter)
}

func (s *Service) AddImage(ctx context.Context, actor domain.Actor, productID string, image domain.Image) error {
	if !actor.CanManageCatalog() {
		return domain.ErrForbidden
	}
	if image.URL == "" {
		return domain.ErrInvalidProductInput
	}
	return s.repo.AddImage(ctx, productID, image)
}

func (s *Service) DeleteProduct(ctx context.Context, actor domain.Actor, id string) error {
	if !actor.CanManageCatalog() {
		return domain.ErrForbidden
	}
	return s.repo.SoftDelete(ctx, id)
}

func (s *Service) RestoreProduct(ctx context.Context, actor domain.Actor, id string) (*domain.Product, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	if err := s.repo.Restore(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

// AddReview appends a review and recomputes the product's aggregate from
// the full rating set, all inside one transaction under the product's row
// lock.
func (s *Service) AddReview(ctx context.Context, actor domain.Actor, productID string, rating int, comment string) (*domain.Product, error) {
	if rating < 1 || rating > 5 {
		return nil, domain.ErrInvalidRating
	}

	review := &domain.Review{
		UserID:  actor.ID,
		Rating:  rating,
		Comment: comment,
	}

	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := s.repo.LockProductTx(ctx, tx, productID); err != nil {
			return err
		}
		if err := s.repo.InsertReviewTx(ctx, tx, productID, review); err != nil {
			return err
		}
		return s.recomputeAggregateTx(ctx, tx, productID)
	})
	if err != nil {
		return nil, err
	}

	return s.repo.GetByID(ctx, productID)
}

// DeleteReview removes the requester's own review and recomputes the
// aggregate the same way AddReview does.
func (s *Service) DeleteReview(ctx context.Context, actor domain.Actor, productID, reviewID string) error {
	return database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := s.repo.LockProductTx(ctx, tx, productID); err != nil {
			return err
		}

		author, err := s.repo.ReviewAuthorTx(ctx, tx, productID, reviewID)
		if err != nil {
			return err
		}
		if author != actor.ID {
			return domain.ErrForbidden
		}

		if err := s.repo.DeleteReviewTx(ctx, tx, productID, reviewID); err != nil {
			return err
		}
		return s.recomputeAggregateTx(ctx, tx, productID)
	})
}

func (s *Service) recomputeAggregateTx(ctx context.Context, tx *sql.Tx, productID string) error {
	ratings, err := s.repo.RatingsTx(ctx, tx, productID)
	if err != nil {
		return err
	}
	scoring, total := pricing.ReviewAggregate(ratings)
	return s.repo.SetAggregateTx(ctx, tx, productID, scoring, total)
}
