package orders

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/matemarket/matemarket/internal/domain"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// InsertTx persists the order and its line items inside the caller's
// transaction. The order's ID and CreatedAt are assigned here.
func (r *Repository) InsertTx(ctx context.Context, tx *sql.Tx, order *domain.Order) error {
	order.ID = uuid.New().String()
	order.CreatedAt = time.Now().UTC()

	_, err := tx.ExecContext(ctx, `
		INSERT INTO orders (id, client_id, state, delivery_method, total,
			ship_street, ship_number, ship_postal, ship_city, ship_province,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
	`, order.ID, order.ClientID, order.State, order.DeliveryMethod, order.Total,
		order.ShippingAddress.Street, order.ShippingAddress.Number,
		order.ShippingAddress.Postal, order.ShippingAddress.City,
		order.ShippingAddress.Province, order.CreatedAt)
	if err != nil {
		return err
	}

	for _, item := range order.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, product_id, quantity, unit_price)
			VALUES ($1, $2, $3, $4, $5)
		`, uuid.New().String(), order.ID, item.ProductID, item.Quantity, item.UnitPrice)
		if err != nil {
			return err
		}
	}

	return nil
}

// GetByID returns the order with its line items, or nil if absent or
// soft-deleted.
func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	order := &domain.Order{}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, client_id, state, delivery_method, total,
			ship_street, ship_number, ship_postal, ship_city, ship_province,
			created_at, updated_at
		FROM orders
		WHERE id = $1 AND deleted_at IS NULL
	`, id).Scan(&order.ID, &order.ClientID, &order.State, &order.DeliveryMethod,
		&order.Total, &order.ShippingAddress.Street, &order.ShippingAddress.Number,
		&order.ShippingAddress.Postal, &order.ShippingAddress.City,
		&order.ShippingAddress.Province, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT product_id, quantity, unit_price
		FROM order_items
		WHERE order_id = $1
	`, id)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ProductID, &item.Quantity, &item.UnitPrice); err != nil {
			return nil, err
		}
		order.Items = append(order.Items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return order, nil
}

// ListByClient returns the client's orders, newest first, soft-deleted
// excluded.
func (r *Repository) ListByClient(ctx context.Context, clientID string) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, client_id, state, delivery_method, total,
			ship_street, ship_number, ship_postal, ship_city, ship_province,
			created_at, updated_at
		FROM orders
		WHERE client_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC
	`, clientID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	orderMap := make(map[string]*domain.Order)
	var orderIDs []string

	for rows.Next() {
		var order domain.Order
		if err := rows.Scan(&order.ID, &order.ClientID, &order.State,
			&order.DeliveryMethod, &order.Total,
			&order.ShippingAddress.Street, &order.ShippingAddress.Number,
			&order.ShippingAddress.Postal, &order.ShippingAddress.City,
			&order.ShippingAddress.Province, &order.CreatedAt, &order.UpdatedAt); err != nil {
			return nil, err
		}
		order.Items = []domain.OrderItem{}
		orderMap[order.ID] = &order
		orderIDs = append(orderIDs, order.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(orderIDs) == 0 {
		return []domain.Order{}, nil
	}

	itemRows, err := r.db.QueryContext(ctx, `
		SELECT order_id, product_id, quantity, unit_price
		FROM order_items
		WHERE order_id = ANY($1)
	`, pq.Array(orderIDs))
	if err != nil {
		return nil, err
	}
	defer func() { _ = itemRows.Close() }()

	for itemRows.Next() {
		var orderID string
		var item domain.OrderItem
		if err := itemRows.Scan(&orderID, &item.ProductID, &item.Quantity, &item.UnitPrice); err != nil {
			return nil, err
		}
		order := orderMap[orderID]
		order.Items = append(order.Items, item)
	}

	if err := itemRows.Err(); err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		orders = append(orders, *orderMap[id])
	}

	return orders, nil
}

// StateForUpdate reads the order's current state under a row lock so a
// transition is validated against the state it will replace.
func (r *Repository) StateForUpdate(ctx context.Context, tx *sql.Tx, id string) (domain.OrderState, error) {
	var state domain.OrderState
	err := tx.QueryRowContext(ctx, `
		SELECT state FROM orders WHERE id = $1 AND deleted_at IS NULL FOR UPDATE
	`, id).Scan(&state)
	if err == sql.ErrNoRows {
		return "", domain.ErrOrderNotFound
	}
	if err != nil {
		return "", err
	}
	return state, nil
}

func (r *Repository) SetState(ctx context.Context, tx *sql.Tx, id string, state domain.OrderState) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE orders SET state = $1, updated_at = NOW() WHERE id = $2
	`, state, id)
	return err
}

func (r *Repository) SoftDelete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL
	`, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

func (r *Repository) Restore(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders SET deleted_at = NULL WHERE id = $1 AND deleted_at IS NOT NULL
	`, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}
