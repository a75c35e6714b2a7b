// Package cart builds immutable, validated snapshots of a shopping cart from
// the volatile cart store. A snapshot is the only cart representation the
// checkout pipeline accepts: prices are already in minor units, invalid lines
// have been dropped, and the total is derived from the items it contains.
package cart

import (
	"github.com/go-faster/errors"

	"github.com/onepointmotors/checkout-api/internal/domain/money"
)

// ErrEmptyCart indicates no line items survived validation.
var ErrEmptyCart = errors.New("cart has no valid items")

// BelowMinimumError indicates the cart total is under the provider's minimum
// financeable amount. It is raised before any provider interaction so a
// checkout attempt the provider would reject anyway is never started.
type BelowMinimumError struct {
	TotalMinor   int64
	MinimumMinor int64
}

func (e *BelowMinimumError) Error() string {
	return errors.Errorf("total %d below financeable minimum %d", e.TotalMinor, e.MinimumMinor).Error()
}

// RawItem is a line item as held by the volatile cart store: display fields
// plus a major-unit price that has not been validated yet.
type RawItem struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"qty"`
	URL      string  `json:"url,omitempty"`
	ImageURL string  `json:"image,omitempty"`
}

// LineItem is a validated cart line: positive minor-unit price, positive
// quantity.
type LineItem struct {
	ID             string
	Name           string
	UnitPriceMinor int64
	Quantity       int
	URL            string
	ImageURL       string
}

// SubtotalMinor returns unit price times quantity.
func (li LineItem) SubtotalMinor() int64 {
	return li.UnitPriceMinor * int64(li.Quantity)
}

// Snapshot is an immutable, validated view of the cart. Build it with
// BuildSnapshot; never construct one from unvalidated input.
type Snapshot struct {
	Items         []LineItem
	ShippingMinor int64
	TaxMinor      int64
}

// SubtotalMinor sums the line item subtotals.
func (s *Snapshot) SubtotalMinor() int64 {
	var sum int64
	for _, it := range s.Items {
		sum += it.SubtotalMinor()
	}
	return sum
}

// TotalMinor is the amount the provider will be asked to finance. It is
// always derived from the items in this snapshot, never caller-supplied.
func (s *Snapshot) TotalMinor() int64 {
	return s.SubtotalMinor() + s.ShippingMinor + s.TaxMinor
}

// BuildSnapshot normalizes raw items into a validated Snapshot.
//
// Items with a non-positive normalized price or quantity are dropped, not
// coerced. Returns ErrEmptyCart when nothing survives filtering, and
// *BelowMinimumError when the derived total is under minimumMinor.
func BuildSnapshot(raw []RawItem, shipping, tax float64, minimumMinor int64) (*Snapshot, error) {
	items := make([]LineItem, 0, len(raw))
	for _, r := range raw {
		unit := money.ToMinorUnits(r.Price)
		if unit <= 0 || r.Quantity <= 0 {
			continue
		}
		items = append(items, LineItem{
			ID:             r.ID,
			Name:           r.Name,
			UnitPriceMinor: unit,
			Quantity:       r.Quantity,
			URL:            r.URL,
			ImageURL:       r.ImageURL,
		})
	}
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	snap := &Snapshot{
		Items:         items,
		ShippingMinor: money.ToMinorUnits(shipping),
		TaxMinor:      money.ToMinorUnits(tax),
	}
	if total := snap.TotalMinor(); total < minimumMinor {
		return nil, &BelowMinimumError{TotalMinor: total, MinimumMinor: minimumMinor}
	}
	return snap, nil
}
