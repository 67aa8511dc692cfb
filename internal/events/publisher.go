// Package events publishes notification events to RabbitMQ. The external
// notification worker turns them into customer and admin emails; the core
// only fires and forgets.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Markide1/shopie-app/internal/inventory"
	"github.com/Markide1/shopie-app/internal/order"
)

const (
	LowStockQueue    = "notification.low_stock"
	OrderEventsQueue = "notification.order"
)

type Publisher struct {
	ch *amqp.Channel
}

func NewPublisher(conn *amqp.Connection) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	// Declare queues so publish never fails due to missing infra
	for _, q := range []string{LowStockQueue, OrderEventsQueue} {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			return nil, fmt.Errorf("declare %s: %w", q, err)
		}
	}

	return &Publisher{ch: ch}, nil
}

func (p *Publisher) Close() error {
	return p.ch.Close()
}

func (p *Publisher) NotifyLowStock(ctx context.Context, lv inventory.Level) error {
	ev := LowStockAlert{
		EventType: "LowStock",
		ProductID: lv.ProductID,
		Name:      lv.Name,
		Stock:     lv.Stock,
		Timestamp: time.Now().UTC(),
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal LowStock: %w", err)
	}
	return p.publishJSON(ctx, LowStockQueue, body)
}

func (p *Publisher) NotifyOrderConfirmed(ctx context.Context, o *order.Order) error {
	return p.publishOrderEvent(ctx, "OrderConfirmed", o)
}

func (p *Publisher) NotifyOrderShipped(ctx context.Context, o *order.Order) error {
	return p.publishOrderEvent(ctx, "OrderShipped", o)
}

func (p *Publisher) NotifyOrderCancelled(ctx context.Context, o *order.Order) error {
	return p.publishOrderEvent(ctx, "OrderCancelled", o)
}

func (p *Publisher) NotifyOrderDelivered(ctx context.Context, o *order.Order) error {
	return p.publishOrderEvent(ctx, "OrderDelivered", o)
}

func (p *Publisher) publishOrderEvent(ctx context.Context, eventType string, o *order.Order) error {
	ev := OrderEvent{
		EventType:   eventType,
		OrderID:     o.ID,
		UserID:      o.UserID,
		Status:      string(o.Status),
		TotalAmount: o.TotalAmount.StringFixed(2),
		Timestamp:   time.Now().UTC(),
	}
	for _, it := range o.Items {
		ev.Items = append(ev.Items, OrderLine{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Price:     it.Price.StringFixed(2),
		})
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", eventType, err)
	}
	return p.publishJSON(ctx, OrderEventsQueue, body)
}

func (p *Publisher) publishJSON(ctx context.Context, routingKey string, body []byte) error {
	pubCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return p.ch.PublishWithContext(
		pubCtx,
		"",         // default exchange
		routingKey, // queue name as routing key
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}
