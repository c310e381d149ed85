package events

import (
	"time"

	domainEvents "github.com/AzielCF/az-relay/domains/events"
	"github.com/google/uuid"
)

type Meta struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Source     string    `json:"source"`
	ChannelID  string    `json:"channel_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Envelope is the wire shape shared by every transport that carries events.
type Envelope struct {
	Meta Meta `json:"meta"`
	Data any  `json:"data"`
}

func NewEnvelope(source string, evt domainEvents.Event) Envelope {
	occurred := evt.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now().UTC()
	}
	return Envelope{
		Meta: Meta{
			ID:         uuid.NewString(),
			Type:       evt.Type,
			Source:     source,
			ChannelID:  evt.ChannelID,
			OccurredAt: occurred,
		},
		Data: evt.Data,
	}
}
