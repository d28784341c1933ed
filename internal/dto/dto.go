package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/flicky/storefront-api/internal/model"
)

// --- Auth ---

type RegisterRequest struct {
	Username  string `json:"username" binding:"required,max=150"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`
	FirstName string `json:"first_name" binding:"max=150"`
	LastName  string `json:"last_name" binding:"max=150"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	Token  string `json:"token"`
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
}

// --- Catalog ---

type CategoryResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type ProductResponse struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description"`
	Image       string          `json:"image"`
}

type CollectionResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	Image       string `json:"image"`
	Gender      string `json:"gender_category"`
}

type CollectionDetailResponse struct {
	ID          int64             `json:"id"`
	Name        string            `json:"name"`
	Slug        string            `json:"slug"`
	Description string            `json:"description"`
	Products    []ProductResponse `json:"products"`
}

// --- Order ---

// OrderItemRequest deliberately has no price: prices come from the catalog.
type OrderItemRequest struct {
	ProductID int64 `json:"product" binding:"required,min=1"`
	Quantity  int   `json:"quantity" binding:"required,min=1,max=2147483647"`
}

type CreateOrderRequest struct {
	Address    string             `json:"address" binding:"required,max=250"`
	PostalCode string             `json:"postal_code" binding:"required,max=20"`
	City       string             `json:"city" binding:"required,max=100"`
	StripeID   string             `json:"stripe_id" binding:"max=255"`
	Items      []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
}

type OrderResponse struct {
	ID         int64               `json:"id"`
	Status     model.OrderStatus   `json:"status"`
	Paid       bool                `json:"paid"`
	StripeID   string              `json:"stripe_id,omitempty"`
	Address    string              `json:"address"`
	PostalCode string              `json:"postal_code"`
	City       string              `json:"city"`
	Total      decimal.Decimal     `json:"total"`
	Items      []OrderItemResponse `json:"items"`
	Created    time.Time           `json:"created"`
}

type OrderProductResponse struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Image string `json:"image"`
}

type OrderItemResponse struct {
	Price    decimal.Decimal      `json:"price"`
	Quantity int                  `json:"quantity"`
	Product  OrderProductResponse `json:"product"`
}

type UpdateOrderStatusRequest struct {
	Status model.OrderStatus `json:"status" binding:"required,oneof=shipped delivered"`
}

// --- Payment ---

type PaymentItemRequest struct {
	ProductID int64 `json:"id"`
	Quantity  int   `json:"quantity"`
}

// PaymentIntentRequest leaves item validation to the service so that empty
// carts and unknown products get the same answers as order creation.
type PaymentIntentRequest struct {
	Items []PaymentItemRequest `json:"items"`
}

type PaymentIntentResponse struct {
	ClientSecret string `json:"clientSecret"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
}
