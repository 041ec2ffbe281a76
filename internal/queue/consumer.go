package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// OrderCreatedHandler processes one order.created event.
type OrderCreatedHandler func(ctx context.Context, ev OrderCreatedEvent) error

type Consumer struct {
	url            string
	queue          string
	reconnectDelay time.Duration
	handle         OrderCreatedHandler
	logger         Logger
}

func NewConsumer(url, queue string, reconnectDelay time.Duration, handle OrderCreatedHandler, logger Logger) *Consumer {
	if reconnectDelay <= 0 {
		reconnectDelay = 5 * time.Second
	}
	return &Consumer{
		url:            url,
		queue:          queue,
		reconnectDelay: reconnectDelay,
		handle:         handle,
		logger:         logger,
	}
}

// Run consumes until ctx is cancelled, reconnecting whenever the broker
// connection drops.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := c.reconnectDelay
	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.logger.Warnf("consumer: dial broker: %v; retrying in %s", err, backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = c.reconnectDelay

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warnf("consumer: %v; reconnecting", err)
		if !sleep(ctx, c.reconnectDelay) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(10, 0, false); err != nil {
		c.logger.Warnf("consumer: set qos: %v", err)
	}
	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", c.queue, err)
	}

	msgs, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}
	c.logger.Infof("consumer: listening on %s", c.queue)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			switch outcome, err := c.settle(ctx, d.Body, d.Redelivered); outcome {
			case outcomeAck:
				_ = d.Ack(false)
			case outcomeRetry:
				c.logger.Warnf("consumer: message %s: %v; requeued", d.MessageId, err)
				_ = d.Nack(false, true)
			default:
				c.logger.Warnf("consumer: message %s dropped: %v", d.MessageId, err)
				_ = d.Nack(false, false)
			}
		}
	}
}

type outcome int

const (
	outcomeAck outcome = iota
	outcomeRetry
	outcomeDrop
)

var errMalformed = errors.New("malformed event")

// settle runs the handler for one delivery. Malformed bodies are dropped at
// once; handler failures get one redelivery before they are dropped.
func (c *Consumer) settle(ctx context.Context, body []byte, redelivered bool) (outcome, error) {
	err := c.process(ctx, body)
	switch {
	case err == nil:
		return outcomeAck, nil
	case errors.Is(err, errMalformed) || redelivered:
		return outcomeDrop, err
	default:
		return outcomeRetry, err
	}
}

func (c *Consumer) process(ctx context.Context, body []byte) error {
	var ev OrderCreatedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("%w: %v", errMalformed, err)
	}
	if ev.OrderID == "" {
		return fmt.Errorf("%w: no order id", errMalformed)
	}
	return c.handle(ctx, ev)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
