package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/matemarket/matemarket/internal/database"
	"github.com/matemarket/matemarket/internal/domain"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Insert(ctx context.Context, p *domain.Product) error {
	p.ID = uuid.New().String()
	p.CreatedAt = time.Now().UTC()

	attrs, err := json.Marshal(p.Attributes)
	if err != nil {
		return fmt.Errorf("marshal attributes: %w", err)
	}
	images, err := json.Marshal(p.Images)
	if err != nil {
		return fmt.Errorf("marshal images: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO products (id, name, description, price, discount, stock, sold,
			category, attributes, images, scoring, total_ratings, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 0, $7, $8, $9, 0, 0, $10, $10)
	`, p.ID, p.Name, p.Description, p.Price, p.Discount, p.Stock,
		p.Category, attrs, images, p.CreatedAt)
	return err
}

// GetByID returns the product with its reviews, or nil if absent or
// soft-deleted.
func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	p, err := r.scanProduct(r.db.QueryRowContext(ctx, `
		SELECT id, name, description, price, discount, stock, sold, category,
			attributes, images, scoring, total_ratings, created_at, updated_at
		FROM products
		WHERE id = $1 AND deleted_at IS NULL
	`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, rating, comment, created_at
		FROM product_reviews
		WHERE product_id = $1
		ORDER BY created_at
	`, id)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var review domain.Review
		if err := rows.Scan(&review.ID, &review.UserID, &review.Rating,
			&review.Comment, &review.CreatedAt); err != nil {
			return nil, err
		}
		p.Reviews = append(p.Reviews, review)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return p, nil
}

// Filter narrows and orders a product listing.
type Filter struct {
	Category  domain.Category
	Name      string
	MinPrice  *decimal.Decimal
	MaxPrice  *decimal.Decimal
	MinRating *decimal.Decimal
	SortBy    string // "sold", "priceAsc", "priceDesc"
}

func (r *Repository) List(ctx context.Context, filter Filter) ([]domain.Product, error) {
	query := strings.Builder{}
	query.WriteString(`
		SELECT id, name, description, price, discount, stock, sold, category,
			attributes, images, scoring, total_ratings, created_at, updated_at
		FROM products
		WHERE deleted_at IS NULL`)

	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Category != "" {
		query.WriteString(" AND category = " + arg(filter.Category))
	}
	if filter.Name != "" {
		query.WriteString(" AND name = " + arg(filter.Name))
	}
	if filter.MinPrice != nil {
		query.WriteString(" AND price >= " + arg(*filter.MinPrice))
	}
	if filter.MaxPrice != nil {
		query.WriteString(" AND price <= " + arg(*filter.MaxPrice))
	}
	if filter.MinRating != nil {
		query.WriteString(" AND total_ratings > 0 AND scoring >= " + arg(*filter.MinRating))
	}

	switch filter.SortBy {
	case "sold":
		query.WriteString(" ORDER BY sold DESC")
	case "priceAsc":
		query.WriteString(" ORDER BY price ASC")
	case "priceDesc":
		query.WriteString(" ORDER BY price DESC")
	default:
		query.WriteString(" ORDER BY created_at DESC")
	}

	rows, err := r.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	products := []domain.Product{}
	for rows.Next() {
		p, err := r.scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

// Update persists the product's mutable attributes. Stock, sold and the
// review aggregate are owned elsewhere and not written here.
func (r *Repository) Update(ctx context.Context, p *domain.Product) error {
	attrs, err := json.Marshal(p.Attributes)
	if err != nil {
		return fmt.Errorf("marshal attributes: %w", err)
	}
	images, err := json.Marshal(p.Images)
	if err != nil {
		return fmt.Errorf("marshal images: %w", err)
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE products
		SET name = $2, description = $3, price = $4, discount = $5,
			category = $6, attributes = $7, images = $8, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`, p.ID, p.Name, p.Description, p.Price, p.Discount, p.Category, attrs, images)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}

func (r *Repository) AddImage(ctx context.Context, productID string, image domain.Image) error {
	data, err := json.Marshal(image)
	if err != nil {
		return fmt.Errorf("marshal image: %w", err)
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE products
		SET images = images || $2::jsonb, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`, productID, data)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}

func (r *Repository) SoftDelete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE products SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL
	`, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}

func (r *Repository) Restore(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE products SET deleted_at = NULL WHERE id = $1 AND deleted_at IS NOT NULL
	`, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}

// LockProductTx takes the product's row lock so concurrent review writes
// recompute the aggregate one at a time.
func (r *Repository) LockProductTx(ctx context.Context, tx *sql.Tx, productID string) error {
	var id string
	err := tx.QueryRowContext(ctx, `
		SELECT id FROM products WHERE id = $1 AND deleted_at IS NULL FOR UPDATE
	`, productID).Scan(&id)
	if err == sql.ErrNoRows {
		return domain.ErrProductNotFound
	}
	return err
}

func (r *Repository) InsertReviewTx(ctx context.Context, tx *sql.Tx, productID string, review *domain.Review) error {
	review.ID = uuid.New().String()
	review.CreatedAt = time.Now().UTC()

	_, err := tx.ExecContext(ctx, `
		INSERT INTO product_reviews (id, product_id, user_id, rating, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, review.ID, productID, review.UserID, review.Rating, review.Comment, review.CreatedAt)
	if err != nil {
		if database.IsUniqueViolation(err, "product_reviews_product_id_user_id_key") {
			return domain.ErrDuplicateReview
		}
		return err
	}
	return nil
}

// ReviewAuthorTx returns the author of a review on the given product.
func (r *Repository) ReviewAuthorTx(ctx context.Context, tx *sql.Tx, productID, reviewID string) (string, error) {
	var userID string
	err := tx.QueryRowContext(ctx, `
		SELECT user_id FROM product_reviews WHERE id = $1 AND product_id = $2
	`, reviewID, productID).Scan(&userID)
	if err == sql.ErrNoRows {
		return "", domain.ErrReviewNotFound
	}
	if err != nil {
		return "", err
	}
	return userID, nil
}

func (r *Repository) DeleteReviewTx(ctx context.Context, tx *sql.Tx, productID, reviewID string) error {
	result, err := tx.ExecContext(ctx, `
		DELETE FROM product_reviews WHERE id = $1 AND product_id = $2
	`, reviewID, productID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrReviewNotFound
	}
	return nil
}

// RatingsTx reads every rating for the product, the full source set the
// aggregate is recomputed from.
func (r *Repository) RatingsTx(ctx context.Context, tx *sql.Tx, productID string) ([]int, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT rating FROM product_reviews WHERE product_id = $1
	`, productID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ratings []int
	for rows.Next() {
		var rating int
		if err := rows.Scan(&rating); err != nil {
			return nil, err
		}
		ratings = append(ratings, rating)
	}

	return ratings, rows.Err()
}

func (r *Repository) SetAggregateTx(ctx context.Context, tx *sql.Tx, productID string, scoring decimal.Decimal, totalRatings int) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE products SET scoring = $2, total_ratings = $3, updated_at = NOW()
		WHERE id = $1
	`, productID, scoring, totalRatings)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *Repository) scanProduct(row rowScanner) (*domain.Product, error) {
	p := &domain.Product{}
	var attrs, images []byte

	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Discount,
		&p.Stock, &p.Sold, &p.Category, &attrs, &images,
		&p.Scoring, &p.TotalRatings, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if len(attrs) > 0 {
		if err := json.Unmarshal(attrs, &p.Attributes); err != nil {
			return nil, fmt.Errorf("unmarshal attributes: %w", err)
		}
	}
	if len(images) > 0 {
		if err := json.Unmarshal(images, &p.Images); err != nil {
			return nil, fmt.Errorf("unmarshal images: %w", err)
		}
	}

	return p, nil
}
