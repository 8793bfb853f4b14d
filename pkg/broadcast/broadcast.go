package broadcast

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	amqp "github.com/streadway/amqp"
)

// Exchange is the fixed cross-session channel name. The callback session
// (where the provider redirected the payer) publishes here so the session
// that originated the checkout can commit the purchase without waiting for
// its next poll.
const Exchange = "payment_status"

// MessagePaymentCompleted is the only message type the channel carries.
const MessagePaymentCompleted = "PAYMENT_COMPLETED"

// PaymentMessage is the broadcast payload.
type PaymentMessage struct {
	Type              string `json:"type"`
	UserID            string `json:"user_id"`
	PaymentID         string `json:"payment_id"`
	Status            string `json:"status"`
	ExternalReference string `json:"external_reference,omitempty"`
}

// Client holds the RabbitMQ connection and channel.
type Client struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

// Config holds RabbitMQ connection details.
type Config struct {
	URL string
}

// NewClient connects to RabbitMQ and declares the payment_status fanout
// exchange. Every consumer gets its own exclusive queue bound to it, so a
// published message reaches all live sessions at once.
func NewClient(cfg Config) (*Client, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close() // Close connection if channel creation fails
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		Exchange, // name
		"fanout", // type: every bound queue receives every message
		false,    // durable: signals are transient by nature
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare %s exchange: %w", Exchange, err)
	}

	log.Printf("broadcast client connected, %s exchange declared", Exchange)

	return &Client{
		conn:    conn,
		channel: ch,
	}, nil
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
		return fmt.Errorf("multiple errors occurred during broadcast client close: %v", errs)
	}
	return nil
}

// PublishPaymentCompleted broadcasts a payment-success notification to every
// listening session.
func (c *Client) PublishPaymentCompleted(msg PaymentMessage) error {
	if c.channel == nil {
		return fmt.Errorf("broadcast channel is not available")
	}

	msg.Type = MessagePaymentCompleted
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal payment message: %w", err)
	}

	err = c.channel.Publish(
		Exchange, // exchange
		"",       // routing key: ignored by fanout
		false,    // mandatory
		false,    // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
			Timestamp:   time.Now(),
		})
	if err != nil {
		return fmt.Errorf("failed to publish payment message: %w", err)
	}

	log.Printf(" [x] Sent payment event for user %s (payment %s)", msg.UserID, msg.PaymentID)
	return nil
}

// Consume binds an exclusive queue to the payment_status exchange and feeds
// every decoded message to the handler. Undecodable messages are dropped
// with a log line; handler errors are logged and the loop continues.
func (c *Client) Consume(handler func(msg PaymentMessage)) error {
	if c.channel == nil {
		return fmt.Errorf("broadcast channel is not available for consumption")
	}

	queue, err := c.channel.QueueDeclare(
		"",    // name: broker-generated
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare broadcast queue: %w", err)
	}

	if err := c.channel.QueueBind(queue.Name, "", Exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind broadcast queue: %w", err)
	}

	msgs, err := c.channel.Consume(
		queue.Name, // queue
		"",         // consumer tag
		true,       // auto-ack: a lost signal is recovered by polling anyway
		true,       // exclusive
		false,      // no-local
		false,      // no-wait
		nil,        // args
	)
	if err != nil {
		return fmt.Errorf("failed to register broadcast consumer: %w", err)
	}

	go func() {
		for d := range msgs {
			var msg PaymentMessage
			if err := json.Unmarshal(d.Body, &msg); err != nil {
				log.Printf("Dropping undecodable broadcast message: %v", err)
				continue
			}
			if msg.Type != MessagePaymentCompleted {
				continue
			}
			handler(msg)
		}
	}()

	return nil
}
