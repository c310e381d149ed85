package inbound

import (
	"context"
	"time"

	domainChannel "github.com/AzielCF/az-relay/domains/channel"
)

type ContentType string

const (
	ContentText        ContentType = "text"
	ContentImage       ContentType = "image"
	ContentVideo       ContentType = "video"
	ContentAudio       ContentType = "audio"
	ContentDocument    ContentType = "document"
	ContentSticker     ContentType = "sticker"
	ContentLocation    ContentType = "location"
	ContentContact     ContentType = "contact"
	ContentInteractive ContentType = "interactive"
	ContentUnsupported ContentType = "unsupported"
)

type Media struct {
	Type     ContentType `json:"type"`
	URL      string      `json:"url,omitempty"`
	MimeType string      `json:"mime_type,omitempty"`
	Caption  string      `json:"caption,omitempty"`
	Base64   string      `json:"base64,omitempty"`
	FileName string      `json:"file_name,omitempty"`
	MediaKey string      `json:"media_key,omitempty"`
	MediaID  string      `json:"media_id,omitempty"`
}

// Message is the provider-agnostic shape of one inbound message. A normalizer
// only emits it when From and Text are both set.
type Message struct {
	From               string      `json:"from"`
	Text               string      `json:"text"`
	ProviderMessageID  string      `json:"provider_message_id,omitempty"`
	Timestamp          time.Time   `json:"timestamp"`
	ContentType        ContentType `json:"content_type"`
	ProviderInstanceID string      `json:"provider_instance_id,omitempty"`
	ContactName        string      `json:"contact_name,omitempty"`
	IsGroup            bool        `json:"is_group"`
	FromMe             bool        `json:"from_me"`
	Media              *Media      `json:"media,omitempty"`
}

// IDeduplicator reports whether a (channel, message id) pair is new, claiming it
// when it is.
type IDeduplicator interface {
	Claim(ctx context.Context, channelID, providerMessageID string) (bool, error)
}

type IInboundUsecase interface {
	Process(ctx context.Context, provider domainChannel.Provider, msg Message) error
	VerifyToken(ctx context.Context, token string) bool
}
