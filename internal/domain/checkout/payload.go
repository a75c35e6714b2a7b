// Package checkout maps validated cart snapshots into the financing
// provider's checkout wire schema and brokers the client-side checkout
// session lifecycle around it.
package checkout

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/onepointmotors/checkout-api/internal/domain/cart"
)

// Provider schema bounds.
const (
	maxDisplayNameLen = 120
	maxSKULen         = 64
)

// Name is a split person name in the provider schema.
type Name struct {
	First string `json:"first"`
	Last  string `json:"last"`
}

// Address is a postal address in the provider schema.
type Address struct {
	Line1   string `json:"line1"`
	Line2   string `json:"line2,omitempty"`
	City    string `json:"city"`
	State   string `json:"state"`
	Zipcode string `json:"zipcode"`
	Country string `json:"country"`
}

// Contact is a billing or shipping block.
type Contact struct {
	Name        Name    `json:"name"`
	Address     Address `json:"address"`
	Email       string  `json:"email,omitempty"`
	PhoneNumber string  `json:"phone_number,omitempty"`
}

// Item is a line item in the provider schema. Item URLs must be absolute;
// relative URLs are illegal and are resolved against the merchant origin
// before they end up here.
type Item struct {
	DisplayName  string `json:"display_name"`
	SKU          string `json:"sku"`
	UnitPrice    int64  `json:"unit_price"`
	Qty          int    `json:"qty"`
	ItemURL      string `json:"item_url"`
	ItemImageURL string `json:"item_image_url,omitempty"`
}

// Merchant is the merchant block: display name plus the URLs the provider's
// interactive flow returns the buyer to.
type Merchant struct {
	UserConfirmationURL       string `json:"user_confirmation_url"`
	UserCancelURL             string `json:"user_cancel_url"`
	UserConfirmationURLAction string `json:"user_confirmation_url_action"`
	Name                      string `json:"name"`
}

// Payload is the complete checkout object submitted to the provider's
// browser SDK.
type Payload struct {
	Merchant       Merchant          `json:"merchant"`
	Billing        Contact           `json:"billing"`
	Shipping       Contact           `json:"shipping"`
	Items          []Item            `json:"items"`
	Currency       string            `json:"currency"`
	ShippingAmount int64             `json:"shipping_amount"`
	TaxAmount      int64             `json:"tax_amount"`
	Total          int64             `json:"total"`
	OrderID        string            `json:"order_id"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// Customer carries optional buyer identity collected before checkout.
type Customer struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Address   struct {
		Line1   string `json:"line1"`
		Line2   string `json:"line2"`
		City    string `json:"city"`
		State   string `json:"state"`
		ZipCode string `json:"zip_code"`
		Country string `json:"country"`
	} `json:"address"`
}

// Complete reports whether every field the provider needs is present and
// non-blank. Incomplete customers are replaced wholesale by the fallback
// identity; the provider's own flow collects the real buyer in that case.
func (c *Customer) Complete() bool {
	if c == nil {
		return false
	}
	for _, f := range []string{
		c.FirstName, c.LastName, c.Email, c.Phone,
		c.Address.Line1, c.Address.City, c.Address.State, c.Address.ZipCode,
	} {
		if strings.TrimSpace(f) == "" {
			return false
		}
	}
	return true
}

// FallbackIdentity is the placeholder identity substituted when customer
// data is absent or incomplete: a neutral name plus the merchant's own
// registered address.
type FallbackIdentity struct {
	FirstName string
	LastName  string
	Address   Address
}

// BuilderConfig holds the merchant-side constants of the checkout payload.
type BuilderConfig struct {
	MerchantName string
	ConfirmPath  string
	CancelPath   string
	Fallback     FallbackIdentity
}

// Builder converts cart snapshots into provider checkout payloads.
type Builder struct {
	cfg BuilderConfig

	// newOrderID is swappable in tests; defaults to NewOrderID.
	newOrderID func() string
}

// NewBuilder creates a Builder with the given merchant configuration.
func NewBuilder(cfg BuilderConfig) *Builder {
	return &Builder{cfg: cfg, newOrderID: NewOrderID}
}

// NewOrderID returns a fresh order id, unique per checkout attempt. Retries
// of the same logical purchase get a new id so a failed attempt never
// collides with a fresh one at the provider.
func NewOrderID() string {
	return fmt.Sprintf("ORDER-%d-%s", time.Now().UnixMilli(), uuid.NewString()[:8])
}

// Build maps a snapshot and optional customer into the provider payload.
// The total is recomputed from the mapped item list, never taken from the
// caller. merchantOrigin must be an absolute URL; every item URL is resolved
// against it.
func (b *Builder) Build(snap *cart.Snapshot, customer *Customer, merchantOrigin string) (*Payload, error) {
	origin, err := url.Parse(merchantOrigin)
	if err != nil || !origin.IsAbs() {
		return nil, errors.Errorf("merchant origin %q is not an absolute URL", merchantOrigin)
	}

	items := make([]Item, 0, len(snap.Items))
	for i, li := range snap.Items {
		name := strings.TrimSpace(li.Name)
		if name == "" {
			name = fmt.Sprintf("Item %d", i+1)
		}
		items = append(items, Item{
			DisplayName:  truncate(name, maxDisplayNameLen),
			SKU:          sanitizeSKU(li.ID, i),
			UnitPrice:    li.UnitPriceMinor,
			Qty:          li.Quantity,
			ItemURL:      resolveURL(origin, li.URL, origin.String()+"/"),
			ItemImageURL: resolveURL(origin, li.ImageURL, ""),
		})
	}

	// Recompute from the final item list. A caller-supplied total can drift
	// from the items after filtering, and the provider rejects mismatches.
	var subtotal int64
	for _, it := range items {
		subtotal += it.UnitPrice * int64(it.Qty)
	}
	total := subtotal + snap.ShippingMinor + snap.TaxMinor

	contact := b.contact(customer)

	return &Payload{
		Merchant: Merchant{
			UserConfirmationURL:       origin.String() + b.cfg.ConfirmPath,
			UserCancelURL:             origin.String() + b.cfg.CancelPath,
			UserConfirmationURLAction: "GET",
			Name:                      b.cfg.MerchantName,
		},
		Billing:        contact,
		Shipping:       contact,
		Items:          items,
		Currency:       "USD",
		ShippingAmount: snap.ShippingMinor,
		TaxAmount:      snap.TaxMinor,
		Total:          total,
		OrderID:        b.newOrderID(),
		Metadata:       map[string]string{"mode": "modal"},
	}, nil
}

// contact builds the billing/shipping block: the customer verbatim when
// complete, the fallback identity verbatim otherwise.
func (b *Builder) contact(c *Customer) Contact {
	if !c.Complete() {
		return Contact{
			Name:    Name{First: b.cfg.Fallback.FirstName, Last: b.cfg.Fallback.LastName},
			Address: b.cfg.Fallback.Address,
		}
	}
	country := strings.TrimSpace(c.Address.Country)
	if country == "" {
		country = "US"
	}
	return Contact{
		Name: Name{First: strings.TrimSpace(c.FirstName), Last: strings.TrimSpace(c.LastName)},
		Address: Address{
			Line1:   strings.TrimSpace(c.Address.Line1),
			Line2:   strings.TrimSpace(c.Address.Line2),
			City:    strings.TrimSpace(c.Address.City),
			State:   strings.TrimSpace(c.Address.State),
			Zipcode: strings.TrimSpace(c.Address.ZipCode),
			Country: country,
		},
		Email:       strings.TrimSpace(c.Email),
		PhoneNumber: strings.TrimSpace(c.Phone),
	}
}

// resolveURL makes raw absolute against origin. Unresolvable URLs yield
// fallback; the provider schema rejects relative URLs outright.
func resolveURL(origin *url.URL, raw, fallback string) string {
	if raw == "" {
		return fallback
	}
	u, err := origin.Parse(raw)
	if err != nil {
		return fallback
	}
	return u.String()
}

// sanitizeSKU collapses whitespace to dashes and bounds the length. Blank
// ids get a positional placeholder.
func sanitizeSKU(id string, idx int) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Sprintf("SKU-%d", idx+1)
	}
	return truncate(strings.Join(strings.Fields(id), "-"), maxSKULen)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
