package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	coreconfig "github.com/AzielCF/az-relay/core/config"
	domainEvents "github.com/AzielCF/az-relay/domains/events"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

const (
	dialAttempts  = 5
	dialBaseDelay = time.Second
	dialMaxDelay  = 30 * time.Second
)

// amqpChannel is the slice of *amqp.Channel the publisher uses.
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher publishes events to a durable topic exchange, using the event
// type as routing key.
type AMQPPublisher struct {
	exchange string
	source   string

	conn        *amqp.Connection
	openChannel func() (amqpChannel, error)
	mu          sync.Mutex
}

func NewAMQPPublisher(ctx context.Context, cfg coreconfig.EventsConfig) (*AMQPPublisher, error) {
	conn, err := dialWithRetry(ctx, cfg.AMQPURL)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open amqp channel: %w", err)
	}
	defer ch.Close()
	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", cfg.Exchange, err)
	}

	p := &AMQPPublisher{exchange: cfg.Exchange, source: cfg.Source, conn: conn}
	p.openChannel = func() (amqpChannel, error) { return conn.Channel() }

	logrus.WithField("exchange", cfg.Exchange).Info("[EVENTS] AMQP publisher ready")
	return p, nil
}

func dialWithRetry(ctx context.Context, url string) (*amqp.Connection, error) {
	var lastErr error
	delay := dialBaseDelay
	for attempt := 1; attempt <= dialAttempts; attempt++ {
		conn, err := amqp.Dial(url)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		logrus.WithError(err).WithFields(logrus.Fields{"attempt": attempt, "delay": delay}).Warn("[EVENTS] AMQP dial failed")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("amqp dial cancelled: %w", ctx.Err())
		case <-timer.C:
		}
		delay *= 2
		if delay > dialMaxDelay {
			delay = dialMaxDelay
		}
	}
	return nil, fmt.Errorf("failed to connect to amqp after %d attempts: %w", dialAttempts, lastErr)
}

func (p *AMQPPublisher) Publish(ctx context.Context, evt domainEvents.Event) error {
	env := NewEnvelope(p.source, evt)
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to encode event %s: %w", evt.Type, err)
	}

	// amqp channels are not safe for concurrent publishing
	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.openChannel()
	if err != nil {
		return fmt.Errorf("failed to open amqp channel: %w", err)
	}
	defer ch.Close()

	err = ch.PublishWithContext(ctx, p.exchange, evt.Type, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    env.Meta.ID,
		Timestamp:    env.Meta.OccurredAt,
		Type:         evt.Type,
		AppId:        p.source,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", evt.Type, err)
	}
	return nil
}

func (p *AMQPPublisher) Close() error {
	if p.conn == nil {
		return nil
	}
	return p.conn.Close()
}
