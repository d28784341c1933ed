package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flicky/storefront-api/internal/metrics"
	"github.com/flicky/storefront-api/internal/model"
)

var (
	productA = model.Product{ID: 1, Name: "A", Price: decimal.RequireFromString("10.00"), Available: true}
	productB = model.Product{ID: 2, Name: "B", Price: decimal.RequireFromString("5.00"), Available: true}

	alice = model.Identity{UserID: 10, Username: "alice", Email: "alice@example.com", FirstName: "Alice", LastName: "Liddell"}
	bob   = model.Identity{UserID: 20, Username: "bob", Email: "bob@example.com", FirstName: "Bob", LastName: "Builder"}
)

var baseTime = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type orderFixture struct {
	svc       *OrderService
	repo      *mockOrderRepo
	products  *mockProductRepo
	publisher *fakePublisher
}

func newOrderFixture() *orderFixture {
	products := newMockProductRepo(productA, productB)
	repo := newMockOrderRepo(products)
	repo.now = func() time.Time { return baseTime }
	pub := &fakePublisher{}
	svc := NewOrderService(repo, pub, metrics.New(prometheus.NewRegistry()), nil, 12*time.Hour)
	svc.now = func() time.Time { return baseTime }
	return &orderFixture{svc: svc, repo: repo, products: products, publisher: pub}
}

func validOrderInput(lines ...model.CartLine) CreateOrderInput {
	return CreateOrderInput{
		Address: "1 Main St", PostalCode: "12345", City: "Springfield",
		StripeID: "pi_123", Items: lines,
	}
}

func (f *orderFixture) placeOrder(t *testing.T, who model.Identity) *model.Order {
	t.Helper()
	order, err := f.svc.CreateOrder(context.Background(), who, validOrderInput(model.CartLine{ProductID: 1, Quantity: 1}))
	require.NoError(t, err)
	return order
}

func TestOrderService_CreateOrder_PricesFromCatalog(t *testing.T) {
	f := newOrderFixture()

	order, err := f.svc.CreateOrder(context.Background(), alice, validOrderInput(
		model.CartLine{ProductID: 1, Quantity: 2},
		model.CartLine{ProductID: 2, Quantity: 1},
	))
	require.NoError(t, err)

	require.Len(t, order.Items, 2)
	assert.True(t, productA.Price.Equal(order.Items[0].Price))
	assert.True(t, productB.Price.Equal(order.Items[1].Price))
	assert.True(t, decimal.RequireFromString("25.00").Equal(order.Total()))

	assert.Equal(t, model.OrderStatusProcessing, order.Status)
	assert.True(t, order.Paid)
	assert.Equal(t, "pi_123", order.StripeID)
	assert.Equal(t, alice.UserID, order.UserID)
	assert.Equal(t, alice.Email, order.Email)
	assert.Equal(t, alice.FirstName, order.FirstName)
	assert.Equal(t, alice.LastName, order.LastName)

	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, "order.created", f.publisher.events[0].routingKey)
	assert.Equal(t, order.ID, f.publisher.events[0].event.OrderID)
}

func TestOrderService_CreateOrder_PriceSnapshotSurvivesCatalogChange(t *testing.T) {
	f := newOrderFixture()
	order := f.placeOrder(t, alice)

	f.products.products[1].Price = decimal.RequireFromString("99.00")

	history, err := f.svc.ListOrders(context.Background(), alice)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, order.ID, history[0].ID)
	assert.True(t, decimal.RequireFromString("10.00").Equal(history[0].Items[0].Price))
}

func TestOrderService_CreateOrder_EmptyCart(t *testing.T) {
	f := newOrderFixture()
	_, err := f.svc.CreateOrder(context.Background(), alice, validOrderInput())
	assert.ErrorIs(t, err, ErrEmptyCart)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestOrderService_CreateOrder_NonPositiveQuantity(t *testing.T) {
	f := newOrderFixture()
	_, err := f.svc.CreateOrder(context.Background(), alice, validOrderInput(model.CartLine{ProductID: 1, Quantity: 0}))
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Empty(t, f.repo.orders)
}

func TestOrderService_CreateOrder_MissingShipping(t *testing.T) {
	f := newOrderFixture()
	in := validOrderInput(model.CartLine{ProductID: 1, Quantity: 1})
	in.City = "  "
	_, err := f.svc.CreateOrder(context.Background(), alice, in)
	assert.ErrorIs(t, err, ErrMissingShipping)
}

func TestOrderService_CreateOrder_UnknownProductWritesNothing(t *testing.T) {
	f := newOrderFixture()

	_, err := f.svc.CreateOrder(context.Background(), alice, validOrderInput(
		model.CartLine{ProductID: 1, Quantity: 1},
		model.CartLine{ProductID: 99999, Quantity: 1},
	))
	require.ErrorIs(t, err, ErrNotFound)

	var notFound *ProductNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, int64(99999), notFound.ID)
	assert.Contains(t, err.Error(), "99999")

	assert.Empty(t, f.repo.orders)
	assert.Empty(t, f.publisher.events)
}

func TestOrderService_CreateOrder_InsertFailureWritesNothing(t *testing.T) {
	f := newOrderFixture()
	f.repo.failInsert = errBoom

	_, err := f.svc.CreateOrder(context.Background(), alice, validOrderInput(model.CartLine{ProductID: 1, Quantity: 1}))
	assert.ErrorIs(t, err, errBoom)
	assert.Empty(t, f.repo.orders)
}

func TestOrderService_CreateOrder_PublishFailureIsNotFatal(t *testing.T) {
	f := newOrderFixture()
	f.publisher.err = errBoom

	order, err := f.svc.CreateOrder(context.Background(), alice, validOrderInput(model.CartLine{ProductID: 1, Quantity: 1}))
	require.NoError(t, err)
	assert.Contains(t, f.repo.orders, order.ID)
}

func TestOrderService_ListOrders_OwnOnlyNewestFirst(t *testing.T) {
	f := newOrderFixture()

	first := f.placeOrder(t, alice)
	f.repo.now = func() time.Time { return baseTime.Add(time.Hour) }
	second := f.placeOrder(t, alice)
	f.placeOrder(t, bob)

	orders, err := f.svc.ListOrders(context.Background(), alice)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, second.ID, orders[0].ID)
	assert.Equal(t, first.ID, orders[1].ID)
}

func TestOrderService_ListOrders_EmptyIsNotNil(t *testing.T) {
	f := newOrderFixture()
	orders, err := f.svc.ListOrders(context.Background(), alice)
	require.NoError(t, err)
	assert.NotNil(t, orders)
	assert.Empty(t, orders)
}

func TestOrderService_GetOrder_OtherUserIsNotFound(t *testing.T) {
	f := newOrderFixture()
	order := f.placeOrder(t, alice)

	_, err := f.svc.GetOrder(context.Background(), bob, order.ID)
	assert.ErrorIs(t, err, ErrOrderNotFound)

	found, err := f.svc.GetOrder(context.Background(), alice, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, found.ID)
}

func TestOrderService_CancelOrder(t *testing.T) {
	f := newOrderFixture()
	order := f.placeOrder(t, alice)

	cancelled, err := f.svc.CancelOrder(context.Background(), alice, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCancelled, cancelled.Status)
	assert.Equal(t, model.OrderStatusCancelled, f.repo.orders[order.ID].Status)

	last := f.publisher.events[len(f.publisher.events)-1]
	assert.Equal(t, "order.cancelled", last.routingKey)
	assert.Equal(t, model.OrderStatusCancelled, last.event.Status)
}

func TestOrderService_CancelOrder_Twice(t *testing.T) {
	f := newOrderFixture()
	order := f.placeOrder(t, alice)

	_, err := f.svc.CancelOrder(context.Background(), alice, order.ID)
	require.NoError(t, err)

	_, err = f.svc.CancelOrder(context.Background(), alice, order.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestOrderService_CancelOrder_OtherUserIsNotFound(t *testing.T) {
	f := newOrderFixture()
	order := f.placeOrder(t, alice)

	_, err := f.svc.CancelOrder(context.Background(), bob, order.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, model.OrderStatusProcessing, f.repo.orders[order.ID].Status)
}

func TestOrderService_CancelOrder_MissingIsNotFound(t *testing.T) {
	f := newOrderFixture()
	_, err := f.svc.CancelOrder(context.Background(), alice, 424242)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOrderService_CancelOrder_Window(t *testing.T) {
	tests := []struct {
		name    string
		age     time.Duration
		wantErr error
	}{
		{name: "11 hours", age: 11 * time.Hour},
		{name: "exactly 12 hours", age: 12 * time.Hour},
		{name: "13 hours", age: 13 * time.Hour, wantErr: ErrWindowExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newOrderFixture()
			order := f.placeOrder(t, alice)
			f.svc.now = func() time.Time { return baseTime.Add(tt.age) }

			_, err := f.svc.CancelOrder(context.Background(), alice, order.ID)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Contains(t, err.Error(), "12 hours")
				assert.Equal(t, model.OrderStatusProcessing, f.repo.orders[order.ID].Status)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, model.OrderStatusCancelled, f.repo.orders[order.ID].Status)
		})
	}
}

func TestOrderService_CancelOrder_StatusCheckedBeforeWindow(t *testing.T) {
	f := newOrderFixture()
	order := f.placeOrder(t, alice)
	f.repo.orders[order.ID].Status = model.OrderStatusShipped
	f.svc.now = func() time.Time { return baseTime.Add(48 * time.Hour) }

	_, err := f.svc.CancelOrder(context.Background(), alice, order.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.NotErrorIs(t, err, ErrWindowExpired)
}

func TestOrderService_AdvanceStatus(t *testing.T) {
	f := newOrderFixture()
	order := f.placeOrder(t, alice)
	ctx := context.Background()

	shipped, err := f.svc.AdvanceStatus(ctx, order.ID, model.OrderStatusShipped)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusShipped, shipped.Status)

	_, err = f.svc.CancelOrder(ctx, alice, order.ID)
	assert.ErrorIs(t, err, ErrInvalidState)

	delivered, err := f.svc.AdvanceStatus(ctx, order.ID, model.OrderStatusDelivered)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusDelivered, delivered.Status)

	_, err = f.svc.AdvanceStatus(ctx, order.ID, model.OrderStatusShipped)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestOrderService_AdvanceStatus_Rejections(t *testing.T) {
	f := newOrderFixture()
	ctx := context.Background()
	order := f.placeOrder(t, alice)

	_, err := f.svc.AdvanceStatus(ctx, order.ID, model.OrderStatusCancelled)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.svc.AdvanceStatus(ctx, 424242, model.OrderStatusShipped)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.AdvanceStatus(ctx, order.ID, model.OrderStatusDelivered)
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = f.svc.CancelOrder(ctx, alice, order.ID)
	require.NoError(t, err)
	_, err = f.svc.AdvanceStatus(ctx, order.ID, model.OrderStatusShipped)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestOrderService_CreateOrder_OversizedQuantityWritesNothing(t *testing.T) {
	f := newOrderFixture()

	_, err := f.svc.CreateOrder(context.Background(), alice, validOrderInput(model.CartLine{ProductID: 1, Quantity: 1 + 1<<62}))
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	assert.Empty(t, f.repo.orders)
}
