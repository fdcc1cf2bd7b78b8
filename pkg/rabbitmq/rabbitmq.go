package rabbitmq

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	amqp "github.com/streadway/amqp"
)

// Client holds the RabbitMQ connection and channel.
type Client struct {
	conn    *amqp.Connection
	channel *amqp.Channel

	// amqp.Channel is not safe for concurrent publishes.
	mu       sync.Mutex
	declared map[string]bool
}

// Config holds RabbitMQ connection details.
type Config struct {
	URL    string
	Queues []string
}

// NewClient connects to RabbitMQ, opens a channel and declares cfg.Queues.
func NewClient(cfg Config) (*Client, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	c := &Client{conn: conn, channel: ch, declared: map[string]bool{}}
	for _, queue := range cfg.Queues {
		if err := c.declare(queue); err != nil {
			c.Close()
			return nil, err
		}
	}

	log.Printf("RabbitMQ client connected, queues declared: %v", cfg.Queues)
	return c, nil
}

func (c *Client) declare(queue string) error {
	if c.declared[queue] {
		return nil
	}
	_, err := c.channel.QueueDeclare(
		queue, // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare %s: %w", queue, err)
	}
	c.declared[queue] = true
	return nil
}

// Close closes the RabbitMQ connection and channel.
func (c *Client) Close() error {
	var errs []error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close channel: %w", err))
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close connection: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("multiple errors occurred during RabbitMQ client close: %v", errs)
	}
	return nil
}

// Publish sends a persistent JSON message to queue through the default
// exchange.
func (c *Client) Publish(ctx context.Context, queue string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.channel == nil {
		return fmt.Errorf("RabbitMQ channel is not available")
	}
	if err := c.declare(queue); err != nil {
		return err
	}

	err := c.channel.Publish(
		"",    // exchange: default exchange
		queue, // routing key: the queue name
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		})
	if err != nil {
		return fmt.Errorf("failed to publish message to %s: %w", queue, err)
	}
	return nil
}

// Consume starts a goroutine that passes every delivery on queue to handler.
// Successful deliveries are acked. Failed ones are nacked and requeued once;
// a redelivered message that fails again is dropped.
func (c *Client) Consume(queue string, handler func(body []byte) error) error {
	c.mu.Lock()
	if c.channel == nil {
		c.mu.Unlock()
		return fmt.Errorf("RabbitMQ channel is not available for consumption")
	}
	if err := c.declare(queue); err != nil {
		c.mu.Unlock()
		return err
	}
	msgs, err := c.channel.Consume(
		queue, // queue
		"",    // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to register consumer on %s: %w", queue, err)
	}

	log.Printf(" [*] Waiting for messages on %s", queue)

	go func() {
		for msg := range msgs {
			settle(msg, handler(msg.Body))
		}
		log.Printf("Consumer on %s stopped", queue)
	}()
	return nil
}

type delivery interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
	redelivered() bool
	tag() uint64
}

type amqpDelivery struct{ amqp.Delivery }

func (d amqpDelivery) redelivered() bool { return d.Redelivered }
func (d amqpDelivery) tag() uint64       { return d.DeliveryTag }

func settle(msg amqp.Delivery, err error) {
	settleDelivery(amqpDelivery{msg}, err)
}

func settleDelivery(d delivery, err error) {
	if err == nil {
		if ackErr := d.Ack(false); ackErr != nil {
			log.Printf("Error acking message %d: %v", d.tag(), ackErr)
		}
		return
	}
	requeue := !d.redelivered()
	log.Printf("Error processing message %d (requeue=%t): %v", d.tag(), requeue, err)
	if nackErr := d.Nack(false, requeue); nackErr != nil {
		log.Printf("Error nacking message %d: %v", d.tag(), nackErr)
	}
}
