package model

import (
	"errors"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

type User struct {
	ID        int64
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Identity is the authenticated caller as resolved from a bearer token.
type Identity struct {
	UserID    int64
	Username  string
	Email     string
	FirstName string
	LastName  string
	Role      string
}

func (i Identity) IsAdmin() bool { return i.Role == RoleAdmin }

type Category struct {
	ID   int64
	Name string
	Slug string
}

type Product struct {
	ID          int64
	CategoryID  int64
	Name        string
	Slug        string
	Description string
	Price       decimal.Decimal
	Available   bool
	Image       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Gender string

const (
	GenderHer  Gender = "her"
	GenderHim  Gender = "him"
	GenderThem Gender = "them"
)

func (g Gender) Valid() bool {
	switch g {
	case GenderHer, GenderHim, GenderThem:
		return true
	}
	return false
}

type Collection struct {
	ID          int64
	Name        string
	Slug        string
	Description string
	Image       string
	Gender      Gender
	Active      bool
	Products    []Product
}

type OrderStatus string

const (
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered},
}

// CanTransitionTo reports whether the order lifecycle allows moving from s to next.
// Cancelled and delivered are terminal.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

type Order struct {
	ID         int64
	UserID     int64
	Status     OrderStatus
	Paid       bool
	StripeID   string
	FirstName  string
	LastName   string
	Email      string
	Address    string
	PostalCode string
	City       string
	Items      []OrderItem
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Total sums the price snapshots of the order items.
func (o *Order) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.Cost())
	}
	return total
}

// OrderItem holds the price a product had when the order was placed.
// It is never re-read from the product afterwards.
type OrderItem struct {
	ID           int64
	OrderID      int64
	ProductID    int64
	ProductName  string
	ProductImage string
	Price        decimal.Decimal
	Quantity     int
}

func (i OrderItem) Cost() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// CartLine is a requested product and quantity, before pricing.
type CartLine struct {
	ProductID int64
	Quantity  int
}

type QuoteLine struct {
	Product  Product
	Quantity int
}

// Quote is a cart priced from the catalog.
type Quote struct {
	Lines []QuoteLine
	Total decimal.Decimal
}

// MaxQuantity bounds a single cart line. It matches the order_items.quantity
// INTEGER column.
const MaxQuantity = math.MaxInt32

// ErrAmountOutOfRange is returned when a total has no int64 minor-unit form.
var ErrAmountOutOfRange = errors.New("amount out of range")

var maxMinorUnits = decimal.NewFromInt(math.MaxInt64)

// MinorUnits converts the total to the smallest currency unit, truncating.
func (q *Quote) MinorUnits() (int64, error) {
	cents := q.Total.Mul(decimal.NewFromInt(100)).Truncate(0)
	if cents.IsNegative() || cents.GreaterThan(maxMinorUnits) {
		return 0, ErrAmountOutOfRange
	}
	return cents.IntPart(), nil
}

// OrderItems snapshots the quoted prices into order items.
func (q *Quote) OrderItems() []OrderItem {
	items := make([]OrderItem, 0, len(q.Lines))
	for _, l := range q.Lines {
		items = append(items, OrderItem{
			ProductID:    l.Product.ID,
			ProductName:  l.Product.Name,
			ProductImage: l.Product.Image,
			Price:        l.Product.Price,
			Quantity:     l.Quantity,
		})
	}
	return items
}

// OrderEvent is published on the orders exchange after an order changes.
type OrderEvent struct {
	Type       string          `json:"type"`
	OrderID    int64           `json:"order_id"`
	UserID     int64           `json:"user_id"`
	Status     OrderStatus     `json:"status"`
	Total      decimal.Decimal `json:"total"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// FulfillmentMessage is consumed from the fulfillment queue.
type FulfillmentMessage struct {
	OrderID int64       `json:"order_id"`
	Status  OrderStatus `json:"status"`
}

// IntentRequest is what the payment processor is asked to authorize.
type IntentRequest struct {
	Amount   int64
	Currency string
	UserID   int64
}

// PaymentIntent is the processor's authorization handle. ClientSecret is
// handed to the client and never stored.
type PaymentIntent struct {
	ID           string
	ClientSecret string
	Amount       int64
	Currency     string
}
