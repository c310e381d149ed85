package events

import (
	"context"
	"errors"

	domainEvents "github.com/AzielCF/az-relay/domains/events"
	"github.com/sirupsen/logrus"
)

// Multi fans an event out to every publisher and joins their errors.
type Multi []domainEvents.IPublisher

func (m Multi) Publish(ctx context.Context, evt domainEvents.Event) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Noop drops events. It stands in when no transport is configured.
type Noop struct{}

func (Noop) Publish(ctx context.Context, evt domainEvents.Event) error {
	logrus.WithField("type", evt.Type).Trace("[EVENTS] No publisher configured, event dropped")
	return nil
}
