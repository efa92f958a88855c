package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// HandlerFunc processes one delivery body.  A returned error rejects the
// message without requeueing it.
type HandlerFunc func(ctx context.Context, body []byte) error

// Consumer drains a set of durable queues, one goroutine per queue, and
// reconnects with exponential backoff when the broker goes away.
type Consumer struct {
	url      string
	log      *zap.Logger
	handlers map[string]HandlerFunc
	prefetch int
}

func NewConsumer(url string, log *zap.Logger) *Consumer {
	return &Consumer{url: url, log: log, handlers: map[string]HandlerFunc{}, prefetch: 50}
}

// Handle registers h for queue.  It must be called before Run.
func (c *Consumer) Handle(queue string, h HandlerFunc) {
	c.handlers[queue] = h
}

// Run consumes until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) {
	done := make(chan struct{})
	for q, h := range c.handlers {
		go func(q string, h HandlerFunc) {
			c.runQueue(ctx, q, h)
			done <- struct{}{}
		}(q, h)
	}
	for range c.handlers {
		<-done
	}
}

func (c *Consumer) runQueue(ctx context.Context, queue string, h HandlerFunc) {
	log := c.log.With(zap.String("queue", queue))
	backoff := time.Second
	for ctx.Err() == nil {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			log.Warn("consumer dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn, queue, h, log)
		_ = conn.Close()
		if ctx.Err() != nil {
			return
		}
		log.Warn("consume loop ended, reconnecting", zap.Error(err))
		if !sleep(ctx, 2*time.Second) {
			return
		}
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection, queue string, h HandlerFunc, log *zap.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		log.Warn("set QoS failed", zap.Error(err))
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.ConsumeWithContext(ctx, queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	log.Info("consumer started")

	for d := range msgs {
		if err := h(ctx, d.Body); err != nil {
			log.Error("handle message failed", zap.Error(err))
			_ = d.Nack(false, false)
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
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
