package domain

import (
	"time"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusCaptured  OrderStatus = "captured"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// IsTerminal reports whether the order reached a final lifecycle state.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusPaid || s == OrderStatusCaptured || s == OrderStatusCancelled
}

// Order is keyed by the gateway-assigned payment intent id. Items, total and
// currency are fixed at creation; later gateway events only touch status and
// contact fields.
type Order struct {
	PaymentID     string           `json:"payment_id"`
	OrderStatus   OrderStatus      `json:"order_status"`
	PaymentStatus string           `json:"payment_status"`
	Items         []OrderItem      `json:"items"`
	Total         float64          `json:"total"`
	Currency      string           `json:"currency"`
	FirstName     string           `json:"first_name,omitempty"`
	LastName      string           `json:"last_name,omitempty"`
	Email         string           `json:"email,omitempty"`
	Phone         string           `json:"phone,omitempty"`
	Shipping      *ShippingAddress `json:"shipping,omitempty"`
	PaidAt        *time.Time       `json:"paid_at,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// OrderItem is an immutable snapshot of a catalog book at order time.
type OrderItem struct {
	CatalogID       int64   `json:"catalog_id"`
	Title           string  `json:"title"`
	UnitPrice       float64 `json:"unit_price"`
	DiscountPercent float64 `json:"discount_percent"`
	Quantity        int     `json:"quantity"`
}

type ShippingAddress struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

func NewOrder(paymentID, paymentStatus string, items []OrderItem, total float64, currency string) *Order {
	now := time.Now()
	return &Order{
		PaymentID:     paymentID,
		OrderStatus:   OrderStatusPending,
		PaymentStatus: paymentStatus,
		Items:         items,
		Total:         total,
		Currency:      currency,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// OrderPatch carries the fields a gateway event may overwrite on an order.
// Nil pointers leave the stored value untouched.
type OrderPatch struct {
	PaymentStatus string           `json:"payment_status,omitempty"`
	FirstName     *string          `json:"first_name,omitempty"`
	LastName      *string          `json:"last_name,omitempty"`
	Email         *string          `json:"email,omitempty"`
	Phone         *string          `json:"phone,omitempty"`
	Shipping      *ShippingAddress `json:"shipping,omitempty"`
}

// Merge applies the patch last-write-wins and bumps UpdatedAt.
func (o *Order) Merge(patch OrderPatch) {
	if patch.PaymentStatus != "" {
		o.PaymentStatus = patch.PaymentStatus
	}
	if patch.FirstName != nil {
		o.FirstName = *patch.FirstName
	}
	if patch.LastName != nil {
		o.LastName = *patch.LastName
	}
	if patch.Email != nil {
		o.Email = *patch.Email
	}
	if patch.Phone != nil {
		o.Phone = *patch.Phone
	}
	if patch.Shipping != nil {
		o.Shipping = patch.Shipping
	}
	o.UpdatedAt = time.Now()
}
