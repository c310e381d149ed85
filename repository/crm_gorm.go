package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	domainCrm "github.com/AzielCF/az-relay/domains/crm"
	pkgError "github.com/AzielCF/az-relay/pkg/error"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const defaultLeadStatus = "new"

type LeadGormRepository struct {
	db *gorm.DB
}

func NewLeadGormRepository(db *gorm.DB) *LeadGormRepository {
	return &LeadGormRepository{db: db}
}

var _ domainCrm.ILeadStore = (*LeadGormRepository)(nil)

func (r *LeadGormRepository) FindLeadsByStatus(ctx context.Context, orgID string, statuses []string) ([]domainCrm.Lead, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	var models []leadModel
	err := r.db.WithContext(ctx).
		Where("organization_id = ? AND status IN ?", orgID, statuses).
		Order("created_at").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	res := make([]domainCrm.Lead, len(models))
	for i, m := range models {
		res[i] = fromLeadModel(m)
	}
	return res, nil
}

// Save inserts or replaces a lead. It backs seeding and the conversation recorder.
func (r *LeadGormRepository) Save(ctx context.Context, lead *domainCrm.Lead) error {
	if lead.ID == "" {
		lead.ID = uuid.NewString()
	}
	if lead.Status == "" {
		lead.Status = defaultLeadStatus
	}
	now := time.Now().UTC()
	return r.db.WithContext(ctx).Save(&leadModel{
		ID:             lead.ID,
		OrganizationID: lead.OrganizationID,
		Name:           lead.Name,
		Phone:          lead.Phone,
		Status:         lead.Status,
		CreatedAt:      now,
		UpdatedAt:      now,
	}).Error
}

func fromLeadModel(m leadModel) domainCrm.Lead {
	return domainCrm.Lead{
		ID:             m.ID,
		OrganizationID: m.OrganizationID,
		Name:           m.Name,
		Phone:          m.Phone,
		Status:         m.Status,
	}
}

// ConversationGormRecorder keeps one conversation per (channel, contact) and
// creates the lead the first time a contact shows up.
type ConversationGormRecorder struct {
	db *gorm.DB
}

func NewConversationGormRecorder(db *gorm.DB) *ConversationGormRecorder {
	return &ConversationGormRecorder{db: db}
}

var _ domainCrm.IConversationRecorder = (*ConversationGormRecorder)(nil)

func (r *ConversationGormRecorder) CreateOrGetConversation(ctx context.Context, orgID, channelID string, contact domainCrm.Contact) (domainCrm.Conversation, error) {
	if contact.Phone == "" {
		return domainCrm.Conversation{}, pkgError.ValidationError("contact phone is required")
	}

	var conv conversationModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.First(&conv, "channel_id = ? AND contact_phone = ?", channelID, contact.Phone).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		leadID, err := findOrCreateLead(tx, orgID, contact)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		conv = conversationModel{
			ID:             uuid.NewString(),
			OrganizationID: orgID,
			ChannelID:      channelID,
			LeadID:         leadID,
			ContactPhone:   contact.Phone,
			IsGroup:        contact.IsGroup,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		return tx.Create(&conv).Error
	})
	if err != nil {
		return domainCrm.Conversation{}, fmt.Errorf("failed to resolve conversation: %w", err)
	}

	return domainCrm.Conversation{
		ID:             conv.ID,
		OrganizationID: conv.OrganizationID,
		ChannelID:      conv.ChannelID,
		LeadID:         conv.LeadID,
		ContactPhone:   conv.ContactPhone,
		CreatedAt:      conv.CreatedAt,
	}, nil
}

func findOrCreateLead(tx *gorm.DB, orgID string, contact domainCrm.Contact) (string, error) {
	var lead leadModel
	err := tx.First(&lead, "organization_id = ? AND phone = ?", orgID, contact.Phone).Error
	if err == nil {
		return lead.ID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}

	name := contact.Name
	if name == "" {
		name = contact.Phone
	}
	now := time.Now().UTC()
	lead = leadModel{
		ID:             uuid.NewString(),
		OrganizationID: orgID,
		Name:           name,
		Phone:          contact.Phone,
		Status:         defaultLeadStatus,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := tx.Create(&lead).Error; err != nil {
		return "", err
	}
	return lead.ID, nil
}

func (r *ConversationGormRecorder) RecordMessage(ctx context.Context, conversationID string, msg domainCrm.RecordedMessage) error {
	sentAt := msg.SentAt
	if sentAt.IsZero() {
		sentAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(&messageModel{
		ID:                uuid.NewString(),
		ConversationID:    conversationID,
		Direction:         string(msg.Direction),
		Content:           msg.Content,
		ContentType:       msg.ContentType,
		ProviderMessageID: nullString(msg.ProviderMessageID),
		MediaURL:          nullString(msg.MediaURL),
		SentAt:            sentAt,
		CreatedAt:         time.Now().UTC(),
	}).Error
}

// History returns the latest messages of a conversation, oldest first.
func (r *ConversationGormRecorder) History(ctx context.Context, conversationID string, limit int) ([]domainCrm.RecordedMessage, error) {
	if limit <= 0 {
		limit = 20
	}
	var models []messageModel
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("sent_at DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	res := make([]domainCrm.RecordedMessage, len(models))
	for i, m := range models {
		res[len(models)-1-i] = domainCrm.RecordedMessage{
			Direction:         domainCrm.Direction(m.Direction),
			Content:           m.Content,
			ContentType:       m.ContentType,
			ProviderMessageID: m.ProviderMessageID.String,
			MediaURL:          m.MediaURL.String,
			SentAt:            m.SentAt,
		}
	}
	return res, nil
}
