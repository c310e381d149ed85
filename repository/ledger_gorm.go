package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	domainLedger "github.com/AzielCF/az-relay/domains/ledger"
	pkgError "github.com/AzielCF/az-relay/pkg/error"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CampaignGormRepository struct {
	db *gorm.DB
}

func NewCampaignGormRepository(db *gorm.DB) *CampaignGormRepository {
	return &CampaignGormRepository{db: db}
}

var _ domainLedger.ICampaignLedger = (*CampaignGormRepository)(nil)

func (r *CampaignGormRepository) Create(ctx context.Context, c *domainLedger.Campaign) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(&campaignModel{
		ID:        c.ID,
		ChannelID: c.ChannelID,
		Name:      c.Name,
		SentCount: c.SentCount,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.CreatedAt,
	}).Error
}

// IncrementSent adds n in the database so concurrent increments never lose updates.
func (r *CampaignGormRepository) IncrementSent(ctx context.Context, campaignID string, n int64) error {
	res := r.db.WithContext(ctx).Model(&campaignModel{}).
		Where("id = ?", campaignID).
		Updates(map[string]any{
			"sent_count": gorm.Expr("sent_count + ?", n),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgError.NotFoundError(fmt.Sprintf("campaign %s not found", campaignID))
	}
	return nil
}

func (r *CampaignGormRepository) Get(ctx context.Context, campaignID string) (domainLedger.Campaign, error) {
	var m campaignModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", campaignID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domainLedger.Campaign{}, pkgError.NotFoundError(fmt.Sprintf("campaign %s not found", campaignID))
		}
		return domainLedger.Campaign{}, err
	}
	return domainLedger.Campaign{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		Name:      m.Name,
		SentCount: m.SentCount,
		CreatedAt: m.CreatedAt,
	}, nil
}

type QuotaGormStore struct {
	db *gorm.DB
}

func NewQuotaGormStore(db *gorm.DB) *QuotaGormStore {
	return &QuotaGormStore{db: db}
}

var _ domainLedger.IDailyQuotaStore = (*QuotaGormStore)(nil)

func (s *QuotaGormStore) Get(ctx context.Context, channelID, day string) (int64, error) {
	var m dailyQuotaModel
	err := s.db.WithContext(ctx).First(&m, "channel_id = ? AND day = ?", channelID, day).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return m.SendCount, nil
}

// Increment upserts the (channel, day) row, adding n inside the statement.
func (s *QuotaGormStore) Increment(ctx context.Context, channelID, day string, n int64) (int64, error) {
	now := time.Now().UTC()
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "channel_id"}, {Name: "day"}},
		DoUpdates: clause.Assignments(map[string]any{
			"send_count": gorm.Expr("daily_quotas.send_count + ?", n),
			"updated_at": now,
		}),
	}).Create(&dailyQuotaModel{
		ChannelID: channelID,
		Day:       day,
		SendCount: n,
		UpdatedAt: now,
	}).Error
	if err != nil {
		return 0, fmt.Errorf("failed to increment daily quota: %w", err)
	}
	return s.Get(ctx, channelID, day)
}
