package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/flicky/storefront-api/internal/broker"
	"github.com/flicky/storefront-api/internal/model"
	"github.com/flicky/storefront-api/internal/service"
)

const idempotencyTTL = 24 * time.Hour

// StatusAdvancer applies fulfillment transitions to orders.
type StatusAdvancer interface {
	AdvanceStatus(ctx context.Context, orderID int64, next model.OrderStatus) (*model.Order, error)
}

// Deduper remembers which messages were already applied.
type Deduper interface {
	Seen(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, key string) error
}

type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisDeduper(client *redis.Client) *RedisDeduper {
	return &RedisDeduper{client: client, ttl: idempotencyTTL}
}

func (d *RedisDeduper) Seen(ctx context.Context, key string) (bool, error) {
	n, err := d.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (d *RedisDeduper) Mark(ctx context.Context, key string) error {
	return d.client.Set(ctx, key, "1", d.ttl).Err()
}

// FulfillmentWorker consumes shipped/delivered updates from the fulfillment
// queue. Messages that cannot be applied are dead-lettered.
type FulfillmentWorker struct {
	channel *amqp.Channel
	orders  StatusAdvancer
	dedupe  Deduper
	log     *slog.Logger
	done    chan struct{}
}

func NewFulfillmentWorker(ch *amqp.Channel, orders StatusAdvancer, dedupe Deduper, log *slog.Logger) *FulfillmentWorker {
	return &FulfillmentWorker{
		channel: ch,
		orders:  orders,
		dedupe:  dedupe,
		log:     log,
		done:    make(chan struct{}),
	}
}

func (w *FulfillmentWorker) Start(ctx context.Context) error {
	msgs, err := w.channel.Consume(broker.FulfillmentQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	go func() {
		for {
			select {
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				w.processMessage(ctx, msg)
			case <-w.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	w.log.Info("fulfillment worker started")
	return nil
}

func (w *FulfillmentWorker) Stop() { close(w.done) }

func (w *FulfillmentWorker) processMessage(ctx context.Context, msg amqp.Delivery) {
	var fm model.FulfillmentMessage
	if err := json.Unmarshal(msg.Body, &fm); err != nil {
		w.log.Error("unmarshal fulfillment message", "error", err)
		_ = msg.Nack(false, false)
		return
	}

	log := w.log.With("order_id", fm.OrderID, "status", fm.Status)

	if fm.OrderID <= 0 || (fm.Status != model.OrderStatusShipped && fm.Status != model.OrderStatusDelivered) {
		log.Error("invalid fulfillment message")
		_ = msg.Nack(false, false)
		return
	}

	key := idempotencyKey(fm)
	seen, err := w.dedupe.Seen(ctx, key)
	if err != nil {
		log.Error("check idempotency key", "error", err)
		_ = msg.Nack(false, true)
		return
	}
	if seen {
		log.Info("fulfillment update already applied, skipping")
		_ = msg.Ack(false)
		return
	}

	if _, err := w.orders.AdvanceStatus(ctx, fm.OrderID, fm.Status); err != nil {
		log.Error("advance order status failed", "error", err)
		_ = msg.Nack(false, retryable(err))
		return
	}

	if err := w.dedupe.Mark(ctx, key); err != nil {
		log.Error("set idempotency key", "error", err)
	}

	_ = msg.Ack(false)
	log.Info("order status advanced")
}

// retryable reports whether a failed transition may succeed on redelivery.
// Rejections from the order service go to the dead-letter queue.
func retryable(err error) bool {
	return !errors.Is(err, service.ErrNotFound) &&
		!errors.Is(err, service.ErrInvalidState) &&
		!errors.Is(err, service.ErrInvalidInput)
}

func idempotencyKey(fm model.FulfillmentMessage) string {
	return "fulfillment:" + strconv.FormatInt(fm.OrderID, 10) + ":" + string(fm.Status)
}
