//go:build integration

package test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/matemarket/matemarket/internal/auth"
	"github.com/matemarket/matemarket/internal/catalog"
	"github.com/matemarket/matemarket/internal/domain"
	"github.com/matemarket/matemarket/internal/inventory"
	"github.com/matemarket/matemarket/internal/notify"
	"github.com/matemarket/matemarket/internal/orders"
)

type env struct {
	authSvc     *auth.Service
	orderSvc    *orders.Service
	orderRepo   *orders.Repository
	catalogSvc  *catalog.Service
	catalogRepo *catalog.Repository
}

func setupEnv(ctx context.Context, t *testing.T) *env {
	t.Helper()

	pg := SetupPostgres(ctx, t)
	t.Cleanup(pg.Cleanup)

	db := OpenDB(t, pg.ConnStr)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	catalogRepo := catalog.NewRepository(db)
	alerts := notify.NewAlertMailer(notify.NewLogMailer(logger),
		"alerts@matemarket.test", "ops@matemarket.test", logger)

	orderRepo := orders.NewRepository(db)

	return &env{
		authSvc:     auth.NewService(auth.NewRepository(db)),
		orderSvc:    orders.NewService(db, orderRepo, inventory.NewLedger(), nil, logger),
		orderRepo:   orderRepo,
		catalogSvc:  catalog.NewService(db, catalogRepo, alerts, logger),
		catalogRepo: catalogRepo,
	}
}

func registerActor(ctx context.Context, t *testing.T, e *env, email string) domain.Actor {
	t.Helper()

	user, err := e.authSvc.Register(ctx, "Test User", email, "hunter2hunter2")
	if err != nil {
		t.Fatalf("failed to register %s: %v", email, err)
	}
	return domain.Actor{ID: user.ID, Email: user.Email, Role: user.Role}
}

func seedProduct(ctx context.Context, t *testing.T, e *env, name string, category domain.Category, price string, stock int) *domain.Product {
	t.Helper()

	p := &domain.Product{
		Name:     name,
		Price:    decimal.RequireFromString(price),
		Discount: decimal.Zero,
		Stock:    stock,
		Category: category,
		Scoring:  decimal.Zero,
	}
	if err := e.catalogRepo.Insert(ctx, p); err != nil {
		t.Fatalf("failed to seed product %s: %v", name, err)
	}
	return p
}

func testAddress() domain.ShippingAddress {
	return domain.ShippingAddress{
		Street:   "Av. Corrientes",
		Number:   "1234",
		Postal:   "C1043",
		City:     "Buenos Aires",
		Province: "CABA",
	}
}

func TestConcurrentOrdersDoNotOversell(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	e := setupEnv(ctx, t)
	product := seedProduct(ctx, t, e, "Mate Imperial", domain.CategoryMates, "45.00", 5)

	const buyers = 3
	const perOrder = 2

	actors := make([]domain.Actor, buyers)
	for i := range actors {
		actors[i] = registerActor(ctx, t, e, fmt.Sprintf("buyer%d@example.com", i))
	}

	var wg sync.WaitGroup
	results := make([]error, buyers)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = e.orderSvc.Create(ctx, actors[i], orders.CreateInput{
				Items:           []orders.ItemInput{{ProductID: product.ID, Quantity: perOrder}},
				ShippingAddress: testAddress(),
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for i, err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, domain.ErrInsufficientStock):
		default:
			t.Fatalf("order %d failed unexpectedly: %v", i, err)
		}
	}

	// Stock 5 holds at most two 2-unit orders.
	if succeeded > 2 {
		t.Fatalf("expected at most 2 orders to succeed, got %d", succeeded)
	}

	final, err := e.catalogSvc.GetProduct(ctx, product.ID)
	if err != nil {
		t.Fatalf("failed to fetch product: %v", err)
	}
	wantStock := 5 - succeeded*perOrder
	if final.Stock != wantStock {
		t.Fatalf("expected stock %d after %d orders, got %d", wantStock, succeeded, final.Stock)
	}
	if final.Sold != succeeded*perOrder {
		t.Fatalf("expected sold %d, got %d", succeeded*perOrder, final.Sold)
	}
}

func TestFailedOrderRollsBackEveryReservation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	e := setupEnv(ctx, t)
	plenty := seedProduct(ctx, t, e, "Yerba Rosamonte", domain.CategoryYerbas, "8.50", 100)
	scarce := seedProduct(ctx, t, e, "Bombilla Pico Loro", domain.CategoryBombillas, "12.00", 1)
	actor := registerActor(ctx, t, e, "buyer@example.com")

	_, err := e.orderSvc.Create(ctx, actor, orders.CreateInput{
		Items: []orders.ItemInput{
			{ProductID: plenty.ID, Quantity: 5},
			{ProductID: scarce.ID, Quantity: 3},
		},
		ShippingAddress: testAddress(),
	})

	var stockErr *domain.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if stockErr.ProductID != scarce.ID || stockErr.Available != 1 {
		t.Fatalf("unexpected error detail: %+v", stockErr)
	}

	// The first item's reservation must have rolled back with the failure.
	p, err := e.catalogSvc.GetProduct(ctx, plenty.ID)
	if err != nil {
		t.Fatalf("failed to fetch product: %v", err)
	}
	if p.Stock != 100 || p.Sold != 0 {
		t.Fatalf("expected stock 100 sold 0 after rollback, got stock %d sold %d", p.Stock, p.Sold)
	}

	list, err := e.orderSvc.ListForClient(ctx, actor)
	if err != nil {
		t.Fatalf("failed to list orders: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected no persisted orders, got %d", len(list))
	}
}

func TestOrderKeepsPriceSnapshot(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	e := setupEnv(ctx, t)
	product := seedProduct(ctx, t, e, "Mate Torpedo", domain.CategoryMates, "45.00", 10)
	buyer := registerActor(ctx, t, e, "buyer@example.com")
	admin := registerActor(ctx, t, e, "admin@example.com")
	if err := promote(ctx, e, admin, domain.RoleAdmin); err != nil {
		t.Fatalf("failed to promote admin: %v", err)
	}
	admin.Role = domain.RoleAdmin

	order, err := e.orderSvc.Create(ctx, buyer, orders.CreateInput{
		Items:           []orders.ItemInput{{ProductID: product.ID, Quantity: 2}},
		ShippingAddress: testAddress(),
	})
	if err != nil {
		t.Fatalf("failed to create order: %v", err)
	}

	_, err = e.catalogSvc.UpdateProduct(ctx, admin, product.ID, catalog.ProductInput{
		Name:     product.Name,
		Price:    decimal.RequireFromString("55.00"),
		Discount: decimal.Zero,
		Category: product.Category,
	})
	if err != nil {
		t.Fatalf("failed to reprice product: %v", err)
	}

	fetched, err := e.orderSvc.Get(ctx, buyer, order.ID)
	if err != nil {
		t.Fatalf("failed to fetch order: %v", err)
	}
	if len(fetched.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(fetched.Items))
	}
	if !fetched.Items[0].UnitPrice.Equal(decimal.RequireFromString("45.00")) {
		t.Fatalf("expected unit price snapshot 45.00, got %s", fetched.Items[0].UnitPrice)
	}
	if !fetched.Total.Equal(decimal.RequireFromString("90.00")) {
		t.Fatalf("expected total 90.00, got %s", fetched.Total)
	}
}

// promote flips a user's role directly through the auth service acting as
// a bootstrap admin.
func promote(ctx context.Context, e *env, target domain.Actor, role domain.Role) error {
	bootstrap := domain.Actor{ID: target.ID, Role: domain.RoleAdmin}
	return e.authSvc.SetRole(ctx, bootstrap, target.ID, role)
}

func TestReviewAggregateRecompute(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	e := setupEnv(ctx, t)
	product := seedProduct(ctx, t, e, "Termo Media Manija", domain.CategoryTermos, "38.00", 10)
	ana := registerActor(ctx, t, e, "ana@example.com")
	bruno := registerActor(ctx, t, e, "bruno@example.com")

	if _, err := e.catalogSvc.AddReview(ctx, ana, product.ID, 5, "excelente"); err != nil {
		t.Fatalf("failed to add first review: %v", err)
	}
	p, err := e.catalogSvc.AddReview(ctx, bruno, product.ID, 3, "cumple")
	if err != nil {
		t.Fatalf("failed to add second review: %v", err)
	}

	if !p.Scoring.Equal(decimal.RequireFromString("4.00")) || p.TotalRatings != 2 {
		t.Fatalf("expected scoring 4.00 over 2 ratings, got %s over %d", p.Scoring, p.TotalRatings)
	}

	// A second review from the same user hits the uniqueness constraint.
	if _, err := e.catalogSvc.AddReview(ctx, ana, product.ID, 1, "me arrepiento"); !errors.Is(err, domain.ErrDuplicateReview) {
		t.Fatalf("expected ErrDuplicateReview, got %v", err)
	}

	var brunoReview string
	for _, review := range p.Reviews {
		if review.UserID == bruno.ID {
			brunoReview = review.ID
		}
	}
	if brunoReview == "" {
		t.Fatal("expected to find bruno's review")
	}

	if err := e.catalogSvc.DeleteReview(ctx, ana, product.ID, brunoReview); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden deleting another user's review, got %v", err)
	}
	if err := e.catalogSvc.DeleteReview(ctx, bruno, product.ID, brunoReview); err != nil {
		t.Fatalf("failed to delete review: %v", err)
	}

	p, err = e.catalogSvc.GetProduct(ctx, product.ID)
	if err != nil {
		t.Fatalf("failed to fetch product: %v", err)
	}
	if !p.Scoring.Equal(decimal.RequireFromString("5.00")) || p.TotalRatings != 1 {
		t.Fatalf("expected scoring 5.00 over 1 rating after delete, got %s over %d", p.Scoring, p.TotalRatings)
	}
}

func TestOrderStateMachine(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	e := setupEnv(ctx, t)
	product := seedProduct(ctx, t, e, "Yerba Canarias", domain.CategoryYerbas, "9.00", 20)
	buyer := registerActor(ctx, t, e, "buyer@example.com")
	admin := registerActor(ctx, t, e, "admin@example.com")
	if err := promote(ctx, e, admin, domain.RoleAdmin); err != nil {
		t.Fatalf("failed to promote admin: %v", err)
	}
	admin.Role = domain.RoleAdmin

	order, err := e.orderSvc.Create(ctx, buyer, orders.CreateInput{
		Items:           []orders.ItemInput{{ProductID: product.ID, Quantity: 4}},
		ShippingAddress: testAddress(),
	})
	if err != nil {
		t.Fatalf("failed to create order: %v", err)
	}
	if order.State != domain.OrderStatePending {
		t.Fatalf("expected new order pending, got %s", order.State)
	}

	for _, next := range []domain.OrderState{
		domain.OrderStateInProcess,
		domain.OrderStateSent,
		domain.OrderStateReceived,
	} {
		updated, err := e.orderSvc.UpdateState(ctx, admin, order.ID, next)
		if err != nil {
			t.Fatalf("transition to %s failed: %v", next, err)
		}
		if updated.State != next {
			t.Fatalf("expected state %s, got %s", next, updated.State)
		}
	}

	// Received is terminal; nothing moves out of it.
	if _, err := e.orderSvc.UpdateState(ctx, admin, order.ID, domain.OrderStateCancelled); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	// Cancellation of a fresh order leaves inventory where the sale
	// put it.
	second, err := e.orderSvc.Create(ctx, buyer, orders.CreateInput{
		Items:           []orders.ItemInput{{ProductID: product.ID, Quantity: 1}},
		ShippingAddress: testAddress(),
	})
	if err != nil {
		t.Fatalf("failed to create second order: %v", err)
	}
	if _, err := e.orderSvc.UpdateState(ctx, admin, second.ID, domain.OrderStateCancelled); err != nil {
		t.Fatalf("failed to cancel order: %v", err)
	}

	p, err := e.catalogSvc.GetProduct(ctx, product.ID)
	if err != nil {
		t.Fatalf("failed to fetch product: %v", err)
	}
	if p.Stock != 15 || p.Sold != 5 {
		t.Fatalf("expected stock 15 sold 5 after cancellation, got stock %d sold %d", p.Stock, p.Sold)
	}
}

func TestSessionRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	e := setupEnv(ctx, t)

	user, err := e.authSvc.Register(ctx, "Ana", "ana@example.com", "hunter2hunter2")
	if err != nil {
		t.Fatalf("failed to register: %v", err)
	}

	if _, err := e.authSvc.Register(ctx, "Ana Again", "ana@example.com", "hunter2hunter2"); !errors.Is(err, domain.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}

	if _, _, err := e.authSvc.Login(ctx, "ana@example.com", "wrong-password"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	logged, token, err := e.authSvc.Login(ctx, "ana@example.com", "hunter2hunter2")
	if err != nil {
		t.Fatalf("failed to log in: %v", err)
	}
	if logged.ID != user.ID {
		t.Fatalf("expected user %s, got %s", user.ID, logged.ID)
	}

	actor, err := e.authSvc.Authenticate(ctx, token)
	if err != nil {
		t.Fatalf("failed to authenticate: %v", err)
	}
	if actor == nil || actor.ID != user.ID || actor.Role != domain.RoleUser {
		t.Fatalf("unexpected actor: %+v", actor)
	}

	if actor, err := e.authSvc.Authenticate(ctx, "not-a-token"); err != nil || actor != nil {
		t.Fatalf("expected nil actor for unknown token, got %+v err %v", actor, err)
	}
}

func TestProductSoftDeleteAndRestore(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	e := setupEnv(ctx, t)
	product := seedProduct(ctx, t, e, "Bombilla Alpaca", domain.CategoryBombillas, "15.00", 10)
	admin := registerActor(ctx, t, e, "admin@example.com")
	if err := promote(ctx, e, admin, domain.RoleAdmin); err != nil {
		t.Fatalf("failed to promote admin: %v", err)
	}
	admin.Role = domain.RoleAdmin

	if err := e.catalogSvc.DeleteProduct(ctx, admin, product.ID); err != nil {
		t.Fatalf("failed to delete product: %v", err)
	}

	if _, err := e.catalogSvc.GetProduct(ctx, product.ID); !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound after delete, got %v", err)
	}

	listed, err := e.catalogSvc.ListProducts(ctx, catalog.Filter{Category: domain.CategoryBombillas})
	if err != nil {
		t.Fatalf("failed to list products: %v", err)
	}
	if len(listed) != 0 {
		t.Fatalf("expected deleted product hidden from listings, got %d", len(listed))
	}

	restored, err := e.catalogSvc.RestoreProduct(ctx, admin, product.ID)
	if err != nil {
		t.Fatalf("failed to restore product: %v", err)
	}
	if restored.ID != product.ID || restored.Stock != 10 {
		t.Fatalf("unexpected restored product: %+v", restored)
	}
}

func TestKafkaConnection(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	brokers, cleanup := SetupKafka(ctx, t)
	defer cleanup()

	if len(brokers) == 0 {
		t.Fatal("expected at least one broker")
	}

	t.Logf("kafka brokers: %v", brokers)
}
