package events

import (
	"context"
	"time"
)

const (
	TypeInboundMessage     = "inbound.message"
	TypeBroadcastProgress  = "broadcast.progress"
	TypeBroadcastCompleted = "broadcast.completed"
)

type Event struct {
	Type       string    `json:"type"`
	ChannelID  string    `json:"channel_id"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data"`
}

// IPublisher fans events out to the live feed and the message bus. Publish
// must not block the caller for long; failures are the publisher's to log.
type IPublisher interface {
	Publish(ctx context.Context, evt Event) error
}
