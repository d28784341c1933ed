// Package broker declares the RabbitMQ topology and publishes order events.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	EventsExchange   = "orders.events"
	FulfillmentQueue = "orders.fulfillment"
	FulfillmentDLX   = "orders.fulfillment.dlx"
	FulfillmentDLQ   = "orders.fulfillment.dlq"
)

// Setup declares the events exchange and the fulfillment queue with its
// dead-letter exchange and queue.
func Setup(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(EventsExchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare events exchange: %w", err)
	}
	if err := ch.ExchangeDeclare(FulfillmentDLX, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare DLX: %w", err)
	}
	if _, err := ch.QueueDeclare(FulfillmentDLQ, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare DLQ: %w", err)
	}
	if err := ch.QueueBind(FulfillmentDLQ, FulfillmentQueue, FulfillmentDLX, false, nil); err != nil {
		return fmt.Errorf("bind DLQ: %w", err)
	}
	if _, err := ch.QueueDeclare(FulfillmentQueue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    FulfillmentDLX,
		"x-dead-letter-routing-key": FulfillmentQueue,
	}); err != nil {
		return fmt.Errorf("declare fulfillment queue: %w", err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set QoS: %w", err)
	}
	return nil
}

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Publisher sends JSON events to the events exchange.
type Publisher struct {
	ch       channel
	exchange string
}

func NewPublisher(ch *amqp.Channel) *Publisher {
	return &Publisher{ch: ch, exchange: EventsExchange}
}

func (p *Publisher) Publish(ctx context.Context, routingKey string, event any) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	err = p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Type:         routingKey,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}
	return nil
}
