package channel

import (
	"context"
	"time"
)

type ChannelType string

const (
	ChannelTypeWhatsApp  ChannelType = "whatsapp"
	ChannelTypeInstagram ChannelType = "instagram"
	ChannelTypeMessenger ChannelType = "messenger"
	ChannelTypeTelegram  ChannelType = "telegram"
)

type Provider string

const (
	ProviderOfficial Provider = "official"
	ProviderBridge   Provider = "bridge"
)

func (p Provider) Valid() bool {
	return p == ProviderOfficial || p == ProviderBridge
}

// Channel is one tenant-owned messaging endpoint.
type Channel struct {
	ID             string      `json:"id"`
	OrganizationID string      `json:"organization_id"`
	Name           string      `json:"name"`
	Type           ChannelType `json:"type"`
	Provider       Provider    `json:"provider,omitempty"` // explicit tag, may be empty on old records
	ExternalRef    string      `json:"external_ref,omitempty"`
	AccessToken    string      `json:"-"`
	Config         Config      `json:"config"`
	Enabled        bool        `json:"enabled"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// Config holds the explicit per-provider fields. ExternalRef and AccessToken on
// Channel are the legacy spelling of the same data.
type Config struct {
	PhoneNumberID string `json:"phone_number_id,omitempty"`
	AccessToken   string `json:"access_token,omitempty"`
	WabaID        string `json:"waba_id,omitempty"`
	InstanceToken string `json:"instance_token,omitempty"`
	ServerURL     string `json:"server_url,omitempty"`
	InstanceName  string `json:"instance_name,omitempty"`
	DailyLimit    int    `json:"daily_limit,omitempty"`
	VerifyToken   string `json:"verify_token,omitempty"`
	AIEnabled     bool   `json:"ai_enabled"`
}

// Credentials is the resolved, provider-specific view of a channel.
type Credentials struct {
	Provider      Provider
	PhoneNumberID string
	AccessToken   string
	WabaID        string
	InstanceToken string
	ServerURL     string
	InstanceName  string
	ChannelType   ChannelType
}

// InstanceID is the identifier inbound webhooks carry for this provider.
func (c Credentials) InstanceID() string {
	if c.Provider == ProviderOfficial {
		return c.PhoneNumberID
	}
	return c.InstanceName
}

type ICredentialResolver interface {
	Resolve(ch Channel) (Credentials, error)
}

type IChannelRepository interface {
	Create(ctx context.Context, ch *Channel) error
	Update(ctx context.Context, ch *Channel) error
	GetByID(ctx context.Context, id string) (Channel, error)
	List(ctx context.Context, orgID string) ([]Channel, error)
	ListEnabled(ctx context.Context) ([]Channel, error)
}
