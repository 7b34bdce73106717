package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrOrderNotFound   = errors.New("order not found")
	ErrReviewNotFound  = errors.New("review not found")
	ErrUserNotFound    = errors.New("user not found")

	ErrForbidden         = errors.New("forbidden")
	ErrEmptyItemList     = errors.New("order must contain at least one item")
	ErrInvalidQuantity   = errors.New("quantity must be at least 1")
	ErrInvalidCategory   = errors.New("unrecognized product category")
	ErrDuplicateReview   = errors.New("user already reviewed this product")
	ErrInvalidRating     = errors.New("rating must be between 1 and 5")
	ErrInvalidTransition = errors.New("invalid order state transition")

	ErrInvalidDeliveryMethod = errors.New("invalid delivery method")

	ErrInvalidProductInput = errors.New("invalid product input")

	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrInvalidPrice       = errors.New("effective price outside category range")
)

// InsufficientStockError names the product that lost the reservation so the
// client can adjust and resubmit.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// PriceOutOfRangeError reports a creation or update attempt whose effective
// price falls outside the category band.
type PriceOutOfRangeError struct {
	Category  Category
	Effective decimal.Decimal
	Range     PriceRange
}

func (e *PriceOutOfRangeError) Error() string {
	return fmt.Sprintf("effective price %s for category %q outside allowed range [%s, %s]",
		e.Effective.StringFixed(2), e.Category, e.Range.Min, e.Range.Max)
}

func (e *PriceOutOfRangeError) Is(target error) bool {
	return target == ErrInvalidPrice
}
