// setup.go
package rabbit

import (
	"context"
	"fmt"

	"github.com/rabbitmq/amqp091-go"

	"rider-order-sync/internal/logger"
	"rider-order-sync/internal/push"
)

// RoomConsumer receives a rider's events from a topic exchange where the
// backend publishes with the rider id as routing key.
type RoomConsumer struct {
	url      string
	exchange string
	riderID  string
	log      logger.Logger

	// OnConnect runs once the queue is bound, before the first delivery.
	OnConnect func()
}

func NewRoomConsumer(url, exchange, riderID string, log logger.Logger) *RoomConsumer {
	return &RoomConsumer{url: url, exchange: exchange, riderID: riderID, log: log}
}

// Run dials, binds a private queue to the rider's routing key and hands
// each delivery to h until ctx is done or the connection drops.
func (c *RoomConsumer) Run(ctx context.Context, h push.Handler) error {
	ctx = logger.With(ctx, logger.RiderIDKey, c.riderID)

	// Conexión a RabbitMQ
	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial rabbitmq: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	msgs, err := c.setup(ch)
	if err != nil {
		return err
	}
	c.log.Infof(ctx, "🐰 Suscrito a exchange %s (topic) con routing key %s", c.exchange, c.riderID)
	if c.OnConnect != nil {
		c.OnConnect()
	}

	closed := conn.NotifyClose(make(chan *amqp091.Error, 1))
	for {
		select {
		case <-ctx.Done():
			return nil
		case amqpErr := <-closed:
			if amqpErr == nil {
				return nil
			}
			return fmt.Errorf("rabbitmq connection closed: %w", amqpErr)
		case m, ok := <-msgs:
			if !ok {
				return nil
			}
			c.Handle(ctx, m.Body, h)
		}
	}
}

func (c *RoomConsumer) setup(ch *amqp091.Channel) (<-chan amqp091.Delivery, error) {
	// 1. Declarar el exchange (compartido con el publisher del backend)
	if err := ch.ExchangeDeclare(c.exchange, "topic", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	// 2. Declarar la queue: nombre del servidor, exclusiva, se borra con la conexión
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return nil, fmt.Errorf("declare queue: %w", err)
	}

	// 3. Bindear al exchange; el riderId es la sala
	if err := ch.QueueBind(q.Name, c.riderID, c.exchange, false, nil); err != nil {
		return nil, fmt.Errorf("bind queue: %w", err)
	}

	// 4. Consumir
	msgs, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume queue: %w", err)
	}
	return msgs, nil
}
