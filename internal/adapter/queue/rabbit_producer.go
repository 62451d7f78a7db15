package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aq2208/gorder-scalapay/internal/usecase"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	ExchangeName = "order.events"

	RoutingSettled        = "payment.settled"
	RoutingDeclined       = "payment.declined"
	RoutingRefundRequests = "scalapay.refund.requested"

	SettlementQueue = "scalapay.settlement.q"
	RefundQueue     = "scalapay.refund.q"
)

type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// RabbitProducer implements usecase.EventPublisher
type RabbitProducer struct {
	ch publisher
}

// NewRabbitProducer sets up the exchange, queues, and bindings once at startup.
func NewRabbitProducer(ch *amqp.Channel) (*RabbitProducer, error) {
	// 1. declare exchange (topic type, durable)
	if err := ch.ExchangeDeclare(
		ExchangeName,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	// 2. declare + bind queues
	bindings := []struct{ queue, key string }{
		{SettlementQueue, "payment.*"},
		{RefundQueue, RoutingRefundRequests},
	}
	for _, b := range bindings {
		q, err := ch.QueueDeclare(
			b.queue,
			true,  // durable
			false, // auto-delete
			false, // exclusive
			false, // no-wait
			nil,
		)
		if err != nil {
			return nil, fmt.Errorf("declare queue %s: %w", b.queue, err)
		}
		if err := ch.QueueBind(q.Name, b.key, ExchangeName, false, nil); err != nil {
			return nil, fmt.Errorf("bind queue %s: %w", b.queue, err)
		}
	}

	// 3. publisher confirms
	if err := ch.Confirm(false); err != nil {
		return nil, fmt.Errorf("enable confirm mode: %w", err)
	}

	return &RabbitProducer{ch: ch}, nil
}

// PublishSettlement sends "payment.settled" or "payment.declined" depending on the outcome.
func (p *RabbitProducer) PublishSettlement(ctx context.Context, ev usecase.SettlementEvent) error {
	key := RoutingDeclined
	if ev.Settled {
		key = RoutingSettled
	}
	return p.publish(ctx, key, ev.OrderID, ev)
}

// PublishRefundRequest enqueues a refund command for the refund consumer.
func (p *RabbitProducer) PublishRefundRequest(ctx context.Context, msg usecase.RefundRequestedMsg) error {
	return p.publish(ctx, RoutingRefundRequests, msg.IdempotencyKey, msg)
}

func (p *RabbitProducer) publish(ctx context.Context, key, messageID string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // survive broker restarts
		MessageId:    messageID,
		Body:         body,
	}
	if err := p.ch.PublishWithContext(ctx, ExchangeName, key, false, false, pub); err != nil {
		return fmt.Errorf("publish %s: %w", key, err)
	}
	return nil
}

var _ usecase.EventPublisher = (*RabbitProducer)(nil)
