package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/flicky/storefront-api/internal/metrics"
	"github.com/flicky/storefront-api/internal/model"
	"github.com/flicky/storefront-api/internal/repository"
)

var tracer = otel.Tracer("github.com/flicky/storefront-api/internal/service")

// EventPublisher delivers order events to the message broker.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

type CreateOrderInput struct {
	Address    string
	PostalCode string
	City       string
	StripeID   string
	Items      []model.CartLine
}

type OrderService struct {
	orderRepo    repository.OrderRepository
	publisher    EventPublisher
	metrics      *metrics.Metrics
	log          *slog.Logger
	cancelWindow time.Duration
	now          func() time.Time
}

func NewOrderService(
	orderRepo repository.OrderRepository,
	publisher EventPublisher,
	m *metrics.Metrics,
	log *slog.Logger,
	cancelWindow time.Duration,
) *OrderService {
	return &OrderService{
		orderRepo:    orderRepo,
		publisher:    publisher,
		metrics:      m,
		log:          log,
		cancelWindow: cancelWindow,
		now:          time.Now,
	}
}

// CreateOrder prices the cart from the catalog and stores the order with its
// items in one transaction. Buyer details come from the identity.
func (s *OrderService) CreateOrder(ctx context.Context, who model.Identity, in CreateOrderInput) (*model.Order, error) {
	ctx, span := tracer.Start(ctx, "OrderService.CreateOrder",
		trace.WithAttributes(attribute.Int64("user.id", who.UserID), attribute.Int("order.lines", len(in.Items))))
	defer span.End()

	if len(in.Items) == 0 {
		return nil, ErrEmptyCart
	}
	if strings.TrimSpace(in.Address) == "" || strings.TrimSpace(in.PostalCode) == "" || strings.TrimSpace(in.City) == "" {
		return nil, ErrMissingShipping
	}

	order := &model.Order{
		UserID:     who.UserID,
		Status:     model.OrderStatusProcessing,
		Paid:       true,
		StripeID:   in.StripeID,
		FirstName:  who.FirstName,
		LastName:   who.LastName,
		Email:      who.Email,
		Address:    in.Address,
		PostalCode: in.PostalCode,
		City:       in.City,
	}

	err := s.orderRepo.InTx(ctx, func(tx repository.OrderTx) error {
		quote, err := quoteCart(ctx, tx.Products(), in.Items)
		if err != nil {
			return err
		}
		order.Items = quote.OrderItems()
		return tx.Insert(ctx, order)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int64("order.id", order.ID))
	s.metrics.OrderCreated()
	s.publish(ctx, "order.created", order)
	return order, nil
}

// ListOrders returns the caller's orders, newest first.
func (s *OrderService) ListOrders(ctx context.Context, who model.Identity) ([]model.Order, error) {
	orders, err := s.orderRepo.ListByUserID(ctx, who.UserID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	if orders == nil {
		orders = []model.Order{}
	}
	return orders, nil
}

func (s *OrderService) GetOrder(ctx context.Context, who model.Identity, orderID int64) (*model.Order, error) {
	order, err := s.orderRepo.GetOwned(ctx, orderID, who.UserID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// CancelOrder cancels a processing order of the caller inside the
// cancellation window. Another user's order is reported as not found.
// No refund is issued here.
func (s *OrderService) CancelOrder(ctx context.Context, who model.Identity, orderID int64) (*model.Order, error) {
	ctx, span := tracer.Start(ctx, "OrderService.CancelOrder",
		trace.WithAttributes(attribute.Int64("user.id", who.UserID), attribute.Int64("order.id", orderID)))
	defer span.End()

	var cancelled *model.Order
	err := s.orderRepo.InTx(ctx, func(tx repository.OrderTx) error {
		order, err := tx.LockOwned(ctx, orderID, who.UserID)
		if err != nil {
			return err
		}
		if order == nil {
			return ErrOrderNotFound
		}
		if err := s.checkCancellable(order); err != nil {
			return err
		}

		ok, err := tx.UpdateStatus(ctx, order.ID, model.OrderStatusProcessing, model.OrderStatusCancelled)
		if err != nil {
			return err
		}
		if !ok {
			return ErrOrderNotCancellable
		}
		order.Status = model.OrderStatusCancelled
		cancelled = order
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	s.metrics.OrderCancelled()
	s.publish(ctx, "order.cancelled", cancelled)
	return cancelled, nil
}

func (s *OrderService) checkCancellable(order *model.Order) error {
	if order.Status != model.OrderStatusProcessing {
		return ErrOrderNotCancellable
	}
	if s.now().Sub(order.CreatedAt) > s.cancelWindow {
		return newError(ErrWindowExpired, fmt.Sprintf("cancellation window has passed (%s)", formatWindow(s.cancelWindow)))
	}
	return nil
}

// AdvanceStatus applies a fulfillment transition (shipped, delivered).
func (s *OrderService) AdvanceStatus(ctx context.Context, orderID int64, next model.OrderStatus) (*model.Order, error) {
	if next != model.OrderStatusShipped && next != model.OrderStatusDelivered {
		return nil, ErrInvalidStatus
	}

	var updated *model.Order
	err := s.orderRepo.InTx(ctx, func(tx repository.OrderTx) error {
		order, err := tx.Lock(ctx, orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return ErrOrderNotFound
		}
		if !order.Status.CanTransitionTo(next) {
			return newError(ErrInvalidState, fmt.Sprintf("order cannot move from %s to %s", order.Status, next))
		}

		ok, err := tx.UpdateStatus(ctx, order.ID, order.Status, next)
		if err != nil {
			return err
		}
		if !ok {
			return newError(ErrInvalidState, "order status changed concurrently")
		}
		order.Status = next
		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.OrderStatusChanged(string(next))
	s.publish(ctx, "order."+string(next), updated)
	return updated, nil
}

// publish is best effort: the order is already committed.
func (s *OrderService) publish(ctx context.Context, routingKey string, order *model.Order) {
	if s.publisher == nil {
		return
	}
	event := model.OrderEvent{
		Type:       routingKey,
		OrderID:    order.ID,
		UserID:     order.UserID,
		Status:     order.Status,
		Total:      order.Total(),
		OccurredAt: s.now().UTC(),
	}
	if err := s.publisher.Publish(ctx, routingKey, event); err != nil && s.log != nil {
		s.log.Warn("publish order event", "routing_key", routingKey, "order_id", order.ID, "error", err)
	}
}

func formatWindow(d time.Duration) string {
	if d%time.Hour == 0 {
		return fmt.Sprintf("%d hours", int(d/time.Hour))
	}
	return d.String()
}
