package catalog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/matemarket/matemarket/internal/domain"
)

type captureAlerter struct {
	subjects []string
	bodies   []string
}

func (a *captureAlerter) Alert(_ context.Context, subject, body string) {
	a.subjects = append(a.subjects, subject)
	a.bodies = append(a.bodies, body)
}

// newGuardService wires only what the pre-persistence paths touch.
func newGuardService(alerts Alerter) *Service {
	return NewService(nil, nil, alerts, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func mateInput(price, discount string) ProductInput {
	return ProductInput{
		Name:     "Mate Imperial",
		Price:    decimal.RequireFromString(price),
		Discount: decimal.RequireFromString(discount),
		Stock:    10,
		Category: domain.CategoryMates,
	}
}

func TestService_CreateProduct_Guard(t *testing.T) {
	seller := domain.Actor{ID: "seller-1", Role: domain.RoleSeller}

	t.Run("rejects non-seller", func(t *testing.T) {
		svc := newGuardService(&captureAlerter{})

		buyer := domain.Actor{ID: "user-1", Role: domain.RoleUser}
		_, err := svc.CreateProduct(context.Background(), buyer, mateInput("45.00", "0"))
		if !errors.Is(err, domain.ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}
	})

	t.Run("rejects blank name", func(t *testing.T) {
		svc := newGuardService(&captureAlerter{})

		in := mateInput("45.00", "0")
		in.Name = "   "
		_, err := svc.CreateProduct(context.Background(), seller, in)
		if !errors.Is(err, domain.ErrInvalidProductInput) {
			t.Fatalf("expected ErrInvalidProductInput, got %v", err)
		}
	})

	t.Run("rejects non-positive price", func(t *testing.T) {
		svc := newGuardService(&captureAlerter{})

		_, err := svc.CreateProduct(context.Background(), seller, mateInput("0", "0"))
		if !errors.Is(err, domain.ErrInvalidProductInput) {
			t.Fatalf("expected ErrInvalidProductInput, got %v", err)
		}
	})

	t.Run("rejects discount above 100", func(t *testing.T) {
		svc := newGuardService(&captureAlerter{})

		_, err := svc.CreateProduct(context.Background(), seller, mateInput("45.00", "101"))
		if !errors.Is(err, domain.ErrInvalidProductInput) {
			t.Fatalf("expected ErrInvalidProductInput, got %v", err)
		}
	})

	t.Run("rejects unknown category and alerts", func(t *testing.T) {
		alerts := &captureAlerter{}
		svc := newGuardService(alerts)

		in := mateInput("45.00", "0")
		in.Category = "gourds"
		_, err := svc.CreateProduct(context.Background(), seller, in)
		if !errors.Is(err, domain.ErrInvalidCategory) {
			t.Fatalf("expected ErrInvalidCategory, got %v", err)
		}
		if len(alerts.subjects) != 1 {
			t.Fatalf("expected 1 alert, got %d", len(alerts.subjects))
		}
	})

	t.Run("rejects effective price below category range", func(t *testing.T) {
		alerts := &captureAlerter{}
		svc := newGuardService(alerts)

		// 60 base at 80% off lands at 12.00, below the mates floor of 20.
		_, err := svc.CreateProduct(context.Background(), seller, mateInput("60.00", "80"))

		var rangeErr *domain.PriceOutOfRangeError
		if !errors.As(err, &rangeErr) {
			t.Fatalf("expected PriceOutOfRangeError, got %v", err)
		}
		if !rangeErr.Effective.Equal(decimal.RequireFromString("12.00")) {
			t.Errorf("expected effective price 12.00, got %s", rangeErr.Effective)
		}
		if !errors.Is(err, domain.ErrInvalidPrice) {
			t.Errorf("expected error to match ErrInvalidPrice")
		}
		if len(alerts.bodies) != 1 || !strings.Contains(alerts.bodies[0], "Mate Imperial") {
			t.Errorf("expected alert naming the product, got %v", alerts.bodies)
		}
	})

	t.Run("rejects effective price above category range", func(t *testing.T) {
		alerts := &captureAlerter{}
		svc := newGuardService(alerts)

		_, err := svc.CreateProduct(context.Background(), seller, mateInput("75.00", "0"))

		var rangeErr *domain.PriceOutOfRangeError
		if !errors.As(err, &rangeErr) {
			t.Fatalf("expected PriceOutOfRangeError, got %v", err)
		}
		if len(alerts.subjects) != 1 {
			t.Fatalf("expected 1 alert, got %d", len(alerts.subjects))
		}
	})

	t.Run("accepts discount landing inside the range", func(t *testing.T) {
		alerts := &captureAlerter{}
		svc := newGuardService(alerts)

		// 75 base at 40% off lands at 45.00, inside [20, 60]. The guard
		// passes so the call reaches persistence.
		in := mateInput("75.00", "40")
		if err := svc.guardPrice(context.Background(), in); err != nil {
			t.Fatalf("expected guard to pass, got %v", err)
		}
		if len(alerts.subjects) != 0 {
			t.Errorf("expected no alerts, got %v", alerts.subjects)
		}
	})
}

func TestService_UpdateProduct_ValidatesInput(t *testing.T) {
	seller := domain.Actor{ID: "seller-1", Role: domain.RoleSeller}

	t.Run("rejects blank name", func(t *testing.T) {
		svc := newGuardService(&captureAlerter{})

		in := mateInput("45.00", "0")
		in.Name = ""
		_, err := svc.UpdateProduct(context.Background(), seller, "prod-1", in)
		if !errors.Is(err, domain.ErrInvalidProductInput) {
			t.Fatalf("expected ErrInvalidProductInput, got %v", err)
		}
	})

	t.Run("rejects negative discount", func(t *testing.T) {
		svc := newGuardService(&captureAlerter{})

		in := mateInput("45.00", "0")
		in.Discount = decimal.RequireFromString("-5")
		_, err := svc.UpdateProduct(context.Background(), seller, "prod-1", in)
		if !errors.Is(err, domain.ErrInvalidProductInput) {
			t.Fatalf("expected ErrInvalidProductInput, got %v", err)
		}
	})

	t.Run("rejects non-positive price", func(t *testing.T) {
		svc := newGuardService(&captureAlerter{})

		in := mateInput("45.00", "0")
		in.Price = decimal.Zero
		_, err := svc.UpdateProduct(context.Background(), seller, "prod-1", in)
		if !errors.Is(err, domain.ErrInvalidProductInput) {
			t.Fatalf("expected ErrInvalidProductInput, got %v", err)
		}
	})
}

func TestService_AddReview_RejectsInvalidRating(t *testing.T) {
	svc := newGuardService(&captureAlerter{})
	actor := domain.Actor{ID: "user-1", Role: domain.RoleUser}

	for _, rating := range []int{0, -1, 6} {
		_, err := svc.AddReview(context.Background(), actor, "prod-1", rating, "nope")
		if !errors.Is(err, domain.ErrInvalidRating) {
			t.Errorf("rating %d: expected ErrInvalidRating, got %v", rating, err)
		}
	}
}

func TestService_AddImage_RejectsEmptyURL(t *testing.T) {
	svc := newGuardService(&captureAlerter{})
	seller := domain.Actor{ID: "seller-1", Role: domain.RoleSeller}

	err := svc.AddImage(context.Background(), seller, "prod-1", domain.Image{})
	if !errors.Is(err, domain.ErrInvalidProductInput) {
		t.Fatalf("expected ErrInvalidProductInput, got %v", err)
	}
}
