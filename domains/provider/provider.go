package provider

import (
	"context"

	domainBroadcast "github.com/AzielCF/az-relay/domains/broadcast"
	domainChannel "github.com/AzielCF/az-relay/domains/channel"
)

type TemplateRef struct {
	Name     string   `json:"name"`
	Language string   `json:"language"`
	Params   []string `json:"params,omitempty"`
}

type Template struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Language string `json:"language"`
	Status   string `json:"status"`
	Category string `json:"category"`
}

type MediaInfo struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
	FileSize int64  `json:"file_size"`
	SHA256   string `json:"sha256"`
}

// SendReceipt carries the provider-side id of an accepted message.
type SendReceipt struct {
	MessageID string `json:"message_id"`
}

// ISendAdapter talks to one provider for one resolved set of credentials.
// Operations a provider does not offer return pkgError.UnsupportedOperationError.
type ISendAdapter interface {
	SendText(ctx context.Context, to, text string) (SendReceipt, error)
	SendMedia(ctx context.Context, to string, media domainBroadcast.MediaRef) (SendReceipt, error)
	SendTemplate(ctx context.Context, to string, tpl TemplateRef) (SendReceipt, error)
	SendInteractive(ctx context.Context, to string, in domainBroadcast.InteractiveRef) (SendReceipt, error)
	ListTemplates(ctx context.Context, wabaID string) ([]Template, error)
	GetMediaInfo(ctx context.Context, mediaID string) (MediaInfo, error)
}

type IAdapterFactory interface {
	For(creds domainChannel.Credentials) (ISendAdapter, error)
}

// IChannelOpsUsecase exposes provider lookups for a stored channel.
type IChannelOpsUsecase interface {
	ListTemplates(ctx context.Context, channelID string) ([]Template, error)
	GetMediaInfo(ctx context.Context, channelID, mediaID string) (MediaInfo, error)
}
