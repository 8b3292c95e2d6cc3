package rabbitmq

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	amqp "github.com/streadway/amqp"
	"go.uber.org/zap"

	"muebles/internal/models"
)

// DefaultQueue is the queue notifications are published to when none is configured.
const DefaultQueue = "order_notifications"

// Client holds the RabbitMQ connection and channel.
type Client struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
	logger  *zap.Logger

	// amqp channels are not safe for concurrent publishing
	mu sync.Mutex
}

// Config holds RabbitMQ connection details.
type Config struct {
	URL   string
	Queue string
}

// NewClient connects to RabbitMQ and declares the durable notification queue.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	queue := cfg.Queue
	if queue == "" {
		queue = DefaultQueue
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to RabbitMQ")
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "failed to open channel")
	}

	_, err = ch.QueueDeclare(
		queue, // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, errors.Wrapf(err, "failed to declare %s", queue)
	}

	logger = logger.Named("rabbitmq")
	logger.Info("connected", zap.String("queue", queue))

	return &Client{
		conn:    conn,
		channel: ch,
		queue:   queue,
		logger:  logger,
	}, nil
}

// Close closes the RabbitMQ channel and connection.
func (c *Client) Close() error {
	var errs []error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			errs = append(errs, errors.Wrap(err, "failed to close channel"))
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			errs = append(errs, errors.Wrap(err, "failed to close connection"))
		}
	}
	if len(errs) > 0 {
		return errors.Errorf("errors closing RabbitMQ client: %v", errs)
	}
	return nil
}

// Notify publishes n as a persistent JSON message on the notification queue.
func (c *Client) Notify(ctx context.Context, n *models.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := json.Marshal(n)
	if err != nil {
		return errors.Wrap(err, "failed to marshal notification")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel == nil {
		return errors.New("RabbitMQ channel is not available")
	}
	err = c.channel.Publish(
		"",      // exchange: default exchange
		c.queue, // routing key: the queue name
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			MessageId:    n.ID,
			Type:         n.Kind,
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		})
	if err != nil {
		return errors.Wrap(err, "failed to publish notification")
	}
	c.logger.Debug("notification published", zap.String("id", n.ID), zap.String("kind", n.Kind), zap.Int64("user_id", n.UserID))
	return nil
}

// NotificationHandler processes one consumed notification.
type NotificationHandler func(ctx context.Context, n *models.Notification) error

// ConsumeNotifications delivers queued notifications to handler until ctx is
// done. Messages are acked after handler succeeds and requeued when it fails.
func (c *Client) ConsumeNotifications(ctx context.Context, handler NotificationHandler) error {
	if c.channel == nil {
		return errors.New("RabbitMQ channel is not available for consumption")
	}

	msgs, err := c.channel.Consume(
		c.queue, // queue
		"",      // consumer tag
		false,   // auto-ack
		false,   // exclusive
		false,   // no-local
		false,   // no-wait
		nil,     // args
	)
	if err != nil {
		return errors.Wrap(err, "failed to register consumer")
	}

	c.logger.Info("waiting for notifications", zap.String("queue", c.queue))
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					c.logger.Warn("delivery channel closed")
					return
				}
				dispatch(ctx, c.logger, msg, handler)
			}
		}
	}()
	return nil
}

// dispatch decodes one delivery and settles it. Undecodable messages are
// dropped rather than requeued forever.
func dispatch(ctx context.Context, logger *zap.Logger, msg amqp.Delivery, handler NotificationHandler) {
	var n models.Notification
	if err := json.Unmarshal(msg.Body, &n); err != nil {
		logger.Error("dropping malformed notification", zap.Uint64("tag", msg.DeliveryTag), zap.Error(err))
		if nackErr := msg.Nack(false, false); nackErr != nil {
			logger.Error("nack failed", zap.Uint64("tag", msg.DeliveryTag), zap.Error(nackErr))
		}
		return
	}

	if err := handler(ctx, &n); err != nil {
		logger.Warn("notification handler failed, requeueing", zap.Uint64("tag", msg.DeliveryTag), zap.String("id", n.ID), zap.Error(err))
		if nackErr := msg.Nack(false, true); nackErr != nil {
			logger.Error("nack failed", zap.Uint64("tag", msg.DeliveryTag), zap.Error(nackErr))
		}
		return
	}
	if ackErr := msg.Ack(false); ackErr != nil {
		logger.Error("ack failed", zap.Uint64("tag", msg.DeliveryTag), zap.Error(ackErr))
	}
}
