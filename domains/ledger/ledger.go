package ledger

import (
	"context"
	"time"
)

// DayKey is the UTC calendar day used to key daily quotas.
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

type Campaign struct {
	ID        string    `json:"id"`
	ChannelID string    `json:"channel_id"`
	Name      string    `json:"name"`
	SentCount int64     `json:"sent_count"`
	CreatedAt time.Time `json:"created_at"`
}

// IDailyQuotaStore counts successful sends per channel and UTC day. Increment
// must be atomic under concurrent broadcasts on the same channel.
type IDailyQuotaStore interface {
	Get(ctx context.Context, channelID, day string) (int64, error)
	Increment(ctx context.Context, channelID, day string, n int64) (int64, error)
}

type ICampaignLedger interface {
	Create(ctx context.Context, campaign *Campaign) error
	IncrementSent(ctx context.Context, campaignID string, n int64) error
	Get(ctx context.Context, campaignID string) (Campaign, error)
}
