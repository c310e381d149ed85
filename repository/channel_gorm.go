package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	domainChannel "github.com/AzielCF/az-relay/domains/channel"
	"github.com/AzielCF/az-relay/pkg/crypto"
	pkgError "github.com/AzielCF/az-relay/pkg/error"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type ChannelGormRepository struct {
	db      *gorm.DB
	secrets *crypto.Sealer
}

func NewChannelGormRepository(db *gorm.DB) *ChannelGormRepository {
	return &ChannelGormRepository{db: db}
}

// WithSecrets seals access and instance tokens before they reach the table.
func (r *ChannelGormRepository) WithSecrets(s *crypto.Sealer) *ChannelGormRepository {
	r.secrets = s
	return r
}

var _ domainChannel.IChannelRepository = (*ChannelGormRepository)(nil)

func (r *ChannelGormRepository) Create(ctx context.Context, ch *domainChannel.Channel) error {
	if ch.ID == "" {
		ch.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	ch.CreatedAt, ch.UpdatedAt = now, now

	model, err := r.toModel(*ch)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *ChannelGormRepository) Update(ctx context.Context, ch *domainChannel.Channel) error {
	ch.UpdatedAt = time.Now().UTC()
	model, err := r.toModel(*ch)
	if err != nil {
		return err
	}
	res := r.db.WithContext(ctx).Model(&channelModel{}).Where("id = ?", ch.ID).Select("*").Omit("created_at").Updates(&model)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgError.NotFoundError(fmt.Sprintf("channel %s not found", ch.ID))
	}
	return nil
}

func (r *ChannelGormRepository) GetByID(ctx context.Context, id string) (domainChannel.Channel, error) {
	var m channelModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domainChannel.Channel{}, pkgError.NotFoundError(fmt.Sprintf("channel %s not found", id))
		}
		return domainChannel.Channel{}, err
	}
	return r.fromModel(m), nil
}

func (r *ChannelGormRepository) List(ctx context.Context, orgID string) ([]domainChannel.Channel, error) {
	var models []channelModel
	if err := r.db.WithContext(ctx).Where("organization_id = ?", orgID).Order("created_at").Find(&models).Error; err != nil {
		return nil, err
	}
	return r.fromModels(models), nil
}

func (r *ChannelGormRepository) ListEnabled(ctx context.Context) ([]domainChannel.Channel, error) {
	var models []channelModel
	if err := r.db.WithContext(ctx).Where("enabled = ?", true).Order("created_at").Find(&models).Error; err != nil {
		return nil, err
	}
	return r.fromModels(models), nil
}

func (r *ChannelGormRepository) toModel(ch domainChannel.Channel) (channelModel, error) {
	var err error
	if ch.AccessToken, err = r.secrets.Seal(ch.AccessToken); err != nil {
		return channelModel{}, fmt.Errorf("failed to seal channel access token: %w", err)
	}
	if ch.Config.AccessToken, err = r.secrets.Seal(ch.Config.AccessToken); err != nil {
		return channelModel{}, fmt.Errorf("failed to seal channel config token: %w", err)
	}
	if ch.Config.InstanceToken, err = r.secrets.Seal(ch.Config.InstanceToken); err != nil {
		return channelModel{}, fmt.Errorf("failed to seal channel instance token: %w", err)
	}

	cfg, err := json.Marshal(ch.Config)
	if err != nil {
		return channelModel{}, fmt.Errorf("failed to encode channel config: %w", err)
	}
	return channelModel{
		ID:             ch.ID,
		OrganizationID: ch.OrganizationID,
		Name:           ch.Name,
		Type:           string(ch.Type),
		Provider:       nullString(string(ch.Provider)),
		ExternalRef:    nullString(ch.ExternalRef),
		AccessToken:    nullString(ch.AccessToken),
		Config:         nullString(string(cfg)),
		Enabled:        ch.Enabled,
		CreatedAt:      ch.CreatedAt,
		UpdatedAt:      ch.UpdatedAt,
	}, nil
}

func (r *ChannelGormRepository) fromModel(m channelModel) domainChannel.Channel {
	ch := domainChannel.Channel{
		ID:             m.ID,
		OrganizationID: m.OrganizationID,
		Name:           m.Name,
		Type:           domainChannel.ChannelType(m.Type),
		Provider:       domainChannel.Provider(m.Provider.String),
		ExternalRef:    m.ExternalRef.String,
		AccessToken:    r.open(m.ID, m.AccessToken.String),
		Enabled:        m.Enabled,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
	if m.Config.Valid && m.Config.String != "" {
		if err := json.Unmarshal([]byte(m.Config.String), &ch.Config); err != nil {
			logrus.WithError(err).WithField("channel_id", m.ID).Warn("[CHANNEL] Unreadable channel config, using empty config")
		}
	}
	ch.Config.AccessToken = r.open(m.ID, ch.Config.AccessToken)
	ch.Config.InstanceToken = r.open(m.ID, ch.Config.InstanceToken)
	return ch
}

// open blanks a secret it cannot read, which surfaces later as missing credentials.
func (r *ChannelGormRepository) open(channelID, value string) string {
	plain, err := r.secrets.Open(value)
	if err != nil {
		logrus.WithError(err).WithField("channel_id", channelID).Error("[CHANNEL] Failed to open sealed secret")
		return ""
	}
	return plain
}

func (r *ChannelGormRepository) fromModels(models []channelModel) []domainChannel.Channel {
	res := make([]domainChannel.Channel, len(models))
	for i, m := range models {
		res[i] = r.fromModel(m)
	}
	return res
}
