/**
 * @description
 * This file provides a consumer for receiving messages from RabbitMQ. The
 * consumer declares the durable topic exchange and queue, binds each routing
 * key to its handler, and dispatches deliveries on a background goroutine.
 * A handler's verdict drives the ack decision: true acknowledges the
 * delivery, false requeues it for another attempt.
 *
 * @dependencies
 * - fmt, time: Standard Go libraries.
 * - github.com/rabbitmq/amqp091-go: The RabbitMQ client library.
 * - go.uber.org/zap: Structured logging.
 */
package rabbitmq

import (
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Consumer holds the RabbitMQ connection and channel for receiving messages.
type Consumer struct {
	conn   *amqp091.Connection
	ch     *amqp091.Channel
	logger *zap.Logger
}

// consumerTag names the consumer on the broker after the queue it serves,
// so a stuck consumer shows up attributably in the management UI.
func consumerTag(queueName string) string {
	return queueName + ".consumer"
}

// NewConsumer connects to RabbitMQ and opens a channel for consuming.
func NewConsumer(amqpURL string, logger *zap.Logger) (*Consumer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, err
	}

	// Use a bounded dial timeout so startup does not hang indefinitely
	conn, err := amqp091.DialConfig(cleanURL, amqp091.Config{Dial: amqp091.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	return &Consumer{conn: conn, ch: ch, logger: logger}, nil
}

// ConsumeWithBindings declares the exchange and queue, binds each routing key
// to its handler, and processes deliveries on a background goroutine. A
// handler returning false requeues the delivery.
func (c *Consumer) ConsumeWithBindings(exchange, queueName string, bindings map[string]func([]byte) bool) error {
	if len(bindings) == 0 {
		return fmt.Errorf("no bindings provided")
	}

	if err := c.ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return err
	}

	q, err := c.ch.QueueDeclare(queueName, true, false, false, false, nil)
	if err != nil {
		return err
	}

	handlers := make(map[string]func([]byte) bool)
	for routingKey, handler := range bindings {
		if handler == nil {
			continue
		}
		handlers[routingKey] = handler
		if err := c.ch.QueueBind(q.Name, routingKey, exchange, false, nil); err != nil {
			return err
		}
	}

	msgs, err := c.ch.Consume(q.Name, consumerTag(queueName), false, false, false, false, nil)
	if err != nil {
		return err
	}

	go func() {
		for d := range msgs {
			handler, ok := handlers[d.RoutingKey]
			if !ok {
				c.logger.Warn("no handler bound for routing key; acknowledging to drop",
					zap.String("queue", queueName),
					zap.String("routing_key", d.RoutingKey),
				)
				d.Ack(false)
				continue
			}
			if handler(d.Body) {
				d.Ack(false)
			} else {
				c.logger.Warn("handler rejected delivery; requeuing",
					zap.String("queue", queueName),
					zap.String("routing_key", d.RoutingKey),
				)
				d.Nack(false, true)
			}
		}
		c.logger.Info("delivery stream closed", zap.String("queue", queueName))
	}()

	return nil
}

// Close gracefully closes the channel and connection to RabbitMQ.
func (c *Consumer) Close() {
	if c.ch != nil {
		c.ch.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
}
