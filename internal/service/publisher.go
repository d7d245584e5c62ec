package service

import (
	"context"
	"encoding/json"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/ticket-sales/internal/queue"
)

// Publisher announces confirmed reservations. Publishing happens after
// the confirming transaction commits and is best effort.
type Publisher interface {
	PublishReservationConfirmed(ctx context.Context, ev queue.ReservationConfirmedEvent) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) PublishReservationConfirmed(context.Context, queue.ReservationConfirmedEvent) error {
	return nil
}

// AMQPPublisher publishes to the reservation.confirmed queue on
// RabbitMQ. Each call dials, declares the durable queue and publishes
// one persistent message; errors are logged and returned so the caller
// can ignore them without interrupting the request.
type AMQPPublisher struct {
	URL string
	// DialTimeout bounds the TCP dial and the AMQP handshake. The
	// context deadline wins when it is sooner.
	DialTimeout time.Duration
}

// NewAMQPPublisher returns a publisher for the broker at url.
func NewAMQPPublisher(url string) *AMQPPublisher {
	return &AMQPPublisher{URL: url, DialTimeout: publishTimeout}
}

func (p *AMQPPublisher) dial(ctx context.Context) (*amqp.Connection, error) {
	timeout := p.DialTimeout
	if timeout <= 0 {
		timeout = publishTimeout
	}
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left < timeout {
			timeout = left
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if timeout <= 0 {
		return nil, context.DeadlineExceeded
	}
	return amqp.DialConfig(p.URL, amqp.Config{
		Dial:   amqp.DefaultDial(timeout),
		Locale: "en_US",
	})
}

func (p *AMQPPublisher) PublishReservationConfirmed(ctx context.Context, ev queue.ReservationConfirmedEvent) error {
	conn, err := p.dial(ctx)
	if err != nil {
		log.Printf("rabbitmq: dial failed: %v", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Printf("rabbitmq: channel open failed: %v", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(queue.ReservationConfirmedQueue, true, false, false, false, nil); err != nil {
		log.Printf("rabbitmq: queue declare failed: %v", err)
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		log.Printf("rabbitmq: marshal event failed: %v", err)
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		MessageId:    ev.ExternalRef,
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", queue.ReservationConfirmedQueue, false, false, pub); err != nil {
		log.Printf("rabbitmq: publish failed: %v", err)
		return err
	}
	return nil
}
