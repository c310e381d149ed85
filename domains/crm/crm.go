package crm

import (
	"context"
	"time"
)

type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

type Contact struct {
	Phone   string `json:"phone"`
	Name    string `json:"name,omitempty"`
	IsGroup bool   `json:"is_group"`
}

type Conversation struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	ChannelID      string    `json:"channel_id"`
	LeadID         string    `json:"lead_id"`
	ContactPhone   string    `json:"contact_phone"`
	CreatedAt      time.Time `json:"created_at"`
}

type Lead struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id"`
	Name           string `json:"name"`
	Phone          string `json:"phone"`
	Status         string `json:"status"`
}

type RecordedMessage struct {
	Direction         Direction `json:"direction"`
	Content           string    `json:"content"`
	ContentType       string    `json:"content_type"`
	ProviderMessageID string    `json:"provider_message_id,omitempty"`
	MediaURL          string    `json:"media_url,omitempty"`
	SentAt            time.Time `json:"sent_at"`
}

type IConversationRecorder interface {
	CreateOrGetConversation(ctx context.Context, orgID, channelID string, contact Contact) (Conversation, error)
	RecordMessage(ctx context.Context, conversationID string, msg RecordedMessage) error
}

type ILeadStore interface {
	FindLeadsByStatus(ctx context.Context, orgID string, statuses []string) ([]Lead, error)
}

type IReplyGenerator interface {
	GenerateReply(ctx context.Context, conversationID, lastMessage string) (string, error)
}

// IConversationHistory feeds prior turns to reply generators.
type IConversationHistory interface {
	History(ctx context.Context, conversationID string, limit int) ([]RecordedMessage, error)
}
