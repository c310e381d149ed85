package broadcast

import "context"

type MediaKind string

const (
	MediaImage    MediaKind = "image"
	MediaVideo    MediaKind = "video"
	MediaAudio    MediaKind = "audio"
	MediaDocument MediaKind = "document"
)

type MediaRef struct {
	URL      string    `json:"url"`
	Kind     MediaKind `json:"kind"`
	Caption  string    `json:"caption,omitempty"`
	FileName string    `json:"file_name,omitempty"`
	MimeType string    `json:"mime_type,omitempty"`
}

type InteractiveType string

const (
	InteractiveButton InteractiveType = "button"
	InteractiveList   InteractiveType = "list"
)

type Choice struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

type InteractiveRef struct {
	Type       InteractiveType `json:"type"`
	Title      string          `json:"title,omitempty"`
	Body       string          `json:"body"`
	Footer     string          `json:"footer,omitempty"`
	ButtonText string          `json:"button_text,omitempty"` // list only
	Choices    []Choice        `json:"choices"`
}

type SendRequest struct {
	ChannelID        string          `json:"channel_id"`
	CampaignName     string          `json:"campaign_name,omitempty"`
	Numbers          []string        `json:"numbers,omitempty"`
	Statuses         []string        `json:"statuses,omitempty"`
	TemplateName     string          `json:"template_name,omitempty"`
	TemplateLanguage string          `json:"template_language,omitempty"`
	TemplateParams   []string        `json:"template_params,omitempty"`
	Message          string          `json:"message,omitempty"`
	Media            *MediaRef       `json:"media,omitempty"`
	Interactive      *InteractiveRef `json:"interactive,omitempty"`
}

// Outcome is the result of one recipient's send.
type Outcome struct {
	Recipient         string `json:"recipient"`
	Success           bool   `json:"success"`
	ProviderMessageID string `json:"provider_message_id,omitempty"`
	Error             string `json:"error,omitempty"`
}

type SendResult struct {
	Sent       int       `json:"sent"`
	Failed     int       `json:"failed"`
	Errors     []string  `json:"errors"`
	CampaignID string    `json:"campaign_id,omitempty"`
	Outcomes   []Outcome `json:"outcomes"`
}

type QuotaStatus struct {
	ChannelID string `json:"channel_id"`
	Day       string `json:"day"`
	Count     int64  `json:"count"`
	Limit     int64  `json:"limit"` // 0 when the provider has no local limit
	Remaining int64  `json:"remaining"`
}

type IBroadcastUsecase interface {
	Send(ctx context.Context, request SendRequest) (SendResult, error)
	Quota(ctx context.Context, channelID string) (QuotaStatus, error)
}
