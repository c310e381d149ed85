package repository

import (
	"context"
	"database/sql"
	"time"

	"gorm.io/gorm"
)

// --- Persistence Models ---

type channelModel struct {
	ID             string         `gorm:"primaryKey;column:id"`
	OrganizationID string         `gorm:"column:organization_id;not null;index"`
	Name           string         `gorm:"column:name;not null"`
	Type           string         `gorm:"column:type;not null;default:'whatsapp'"`
	Provider       sql.NullString `gorm:"column:provider"`
	ExternalRef    sql.NullString `gorm:"column:external_ref;index"`
	AccessToken    sql.NullString `gorm:"column:access_token"`
	Config         sql.NullString `gorm:"column:config;type:text"` // JSON
	Enabled        bool           `gorm:"column:enabled;default:true;index"`
	CreatedAt      time.Time      `gorm:"column:created_at;not null"`
	UpdatedAt      time.Time      `gorm:"column:updated_at;not null"`
}

func (channelModel) TableName() string { return "channels" }

type campaignModel struct {
	ID        string    `gorm:"primaryKey;column:id"`
	ChannelID string    `gorm:"column:channel_id;not null;index"`
	Name      string    `gorm:"column:name"`
	SentCount int64     `gorm:"column:sent_count;not null;default:0"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

func (campaignModel) TableName() string { return "campaigns" }

type dailyQuotaModel struct {
	ChannelID string    `gorm:"primaryKey;column:channel_id"`
	Day       string    `gorm:"primaryKey;column:day;size:10"`
	SendCount int64     `gorm:"column:send_count;not null;default:0"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

func (dailyQuotaModel) TableName() string { return "daily_quotas" }

type leadModel struct {
	ID             string    `gorm:"primaryKey;column:id"`
	OrganizationID string    `gorm:"column:organization_id;not null;index:idx_lead_org_phone;index:idx_lead_org_status"`
	Name           string    `gorm:"column:name"`
	Phone          string    `gorm:"column:phone;not null;index:idx_lead_org_phone"`
	Status         string    `gorm:"column:status;not null;default:'new';index:idx_lead_org_status"`
	CreatedAt      time.Time `gorm:"column:created_at;not null"`
	UpdatedAt      time.Time `gorm:"column:updated_at;not null"`
}

func (leadModel) TableName() string { return "leads" }

type conversationModel struct {
	ID             string    `gorm:"primaryKey;column:id"`
	OrganizationID string    `gorm:"column:organization_id;not null;index"`
	ChannelID      string    `gorm:"column:channel_id;not null;uniqueIndex:idx_conversation_channel_phone"`
	LeadID         string    `gorm:"column:lead_id;index"`
	ContactPhone   string    `gorm:"column:contact_phone;not null;uniqueIndex:idx_conversation_channel_phone"`
	IsGroup        bool      `gorm:"column:is_group;default:false"`
	CreatedAt      time.Time `gorm:"column:created_at;not null"`
	UpdatedAt      time.Time `gorm:"column:updated_at;not null"`
}

func (conversationModel) TableName() string { return "conversations" }

type messageModel struct {
	ID                string         `gorm:"primaryKey;column:id"`
	ConversationID    string         `gorm:"column:conversation_id;not null;index"`
	Direction         string         `gorm:"column:direction;not null"`
	Content           string         `gorm:"column:content;type:text"`
	ContentType       string         `gorm:"column:content_type;default:'text'"`
	ProviderMessageID sql.NullString `gorm:"column:provider_message_id;index"`
	MediaURL          sql.NullString `gorm:"column:media_url"`
	SentAt            time.Time      `gorm:"column:sent_at;not null;index"`
	CreatedAt         time.Time      `gorm:"column:created_at;not null"`
}

func (messageModel) TableName() string { return "messages" }

// AutoMigrate creates or updates every table the relay owns.
func AutoMigrate(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).AutoMigrate(
		&channelModel{},
		&campaignModel{},
		&dailyQuotaModel{},
		&leadModel{},
		&conversationModel{},
		&messageModel{},
	)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
