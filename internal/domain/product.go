package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Category string

const (
	CategoryMates     Category = "mates"
	CategoryBombillas Category = "bombillas"
	CategoryYerbas    Category = "yerbas"
	CategoryTermos    Category = "termos"
)

// PriceRange bounds the effective (post-discount) price allowed for a category.
type PriceRange struct {
	Min decimal.Decimal
	Max decimal.Decimal
}

func (r PriceRange) Contains(price decimal.Decimal) bool {
	return price.GreaterThanOrEqual(r.Min) && price.LessThanOrEqual(r.Max)
}

var categoryPriceRanges = map[Category]PriceRange{
	CategoryMates:     {Min: decimal.NewFromInt(20), Max: decimal.NewFromInt(60)},
	CategoryBombillas: {Min: decimal.NewFromInt(8), Max: decimal.NewFromInt(20)},
	CategoryYerbas:    {Min: decimal.NewFromInt(5), Max: decimal.NewFromInt(11)},
	CategoryTermos:    {Min: decimal.NewFromInt(20), Max: decimal.NewFromInt(60)},
}

// PriceRangeFor returns the valid effective-price range for a category,
// or false if the category is not part of the catalog.
func PriceRangeFor(c Category) (PriceRange, bool) {
	r, ok := categoryPriceRanges[c]
	return r, ok
}

type Attribute struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type Image struct {
	URL string `json:"url"`
	Alt string `json:"alt,omitempty"`
}

type Review struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Discount    decimal.Decimal `json:"discount"`
	Stock       int             `json:"stock"`
	Sold        int             `json:"sold"`
	Category    Category        `json:"category"`
	Attributes  []Attribute     `json:"attributes,omitempty"`
	Images      []Image         `json:"images,omitempty"`

	// Scoring and TotalRatings are caches over Reviews, recomputed in full
	// on every review insertion or removal.
	Scoring      decimal.Decimal `json:"scoring"`
	TotalRatings int             `json:"total_ratings"`
	Reviews      []Review        `json:"reviews,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
