/**
 * @description
 * A confirming publisher for outbound protocol signals. The channel runs in
 * confirm mode and Publish returns only after the broker acknowledges the
 * message, which lets the outbox flusher delete a row knowing the signal is
 * on the wire.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - github.com/rabbitmq/amqp091-go: The RabbitMQ client library.
 */
package rabbitmq

import (
	"context"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// SignalPublisher publishes signal bodies to one fixed topic exchange.
type SignalPublisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

// NewSignalPublisher dials the broker, opens a confirm-mode channel, and
// declares the exchange.
func NewSignalPublisher(amqpURL, exchange string) (*SignalPublisher, error) {
	cleanURL, err := sanitizeURL(amqpURL)
	if err != nil {
		return nil, err
	}

	// A bounded dial timeout so startup does not hang indefinitely.
	conn, err := amqp.DialConfig(cleanURL, amqp.Config{Dial: amqp.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, err
	}

	p := &SignalPublisher{conn: conn, exchange: exchange}
	if err := p.openChannel(); err != nil {
		conn.Close()
		return nil, err
	}
	return p, nil
}

func (p *SignalPublisher) openChannel() error {
	ch, err := p.conn.Channel()
	if err != nil {
		return err
	}
	if err := ch.Confirm(false); err != nil {
		ch.Close()
		return err
	}
	if err := ch.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		return err
	}
	p.channel = ch
	return nil
}

// Publish sends one pre-marshaled JSON body and waits for the broker's
// confirmation. On a channel error it reopens the channel and retries once.
func (p *SignalPublisher) Publish(ctx context.Context, routingKey string, body []byte) error {
	err := p.publishConfirmed(ctx, routingKey, body)
	if err == nil {
		return nil
	}
	log.Printf("level=warn component=rabbitmq_producer msg=\"publish failed; reopening channel\" routing_key=%s err=%v", routingKey, err)
	if chErr := p.openChannel(); chErr != nil {
		return chErr
	}
	return p.publishConfirmed(ctx, routingKey, body)
}

func (p *SignalPublisher) publishConfirmed(ctx context.Context, routingKey string, body []byte) error {
	confirm, err := p.channel.PublishWithDeferredConfirmWithContext(ctx,
		p.exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return err
	}
	ok, err := confirm.WaitContext(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("broker nacked publish with routing key %s", routingKey)
	}
	return nil
}

// Close gracefully closes the channel and connection to RabbitMQ.
func (p *SignalPublisher) Close() {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
