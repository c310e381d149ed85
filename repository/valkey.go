package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	domainInbound "github.com/AzielCF/az-relay/domains/inbound"
	domainLedger "github.com/AzielCF/az-relay/domains/ledger"
	domainSession "github.com/AzielCF/az-relay/domains/session"
	"github.com/AzielCF/az-relay/infrastructure/valkey"
)

// quota keys outlive their day so late reads around midnight still see the count
const quotaKeyTTL = 48 * time.Hour

type ValkeyQuotaStore struct {
	client *valkey.Client
}

func NewValkeyQuotaStore(client *valkey.Client) *ValkeyQuotaStore {
	return &ValkeyQuotaStore{client: client}
}

var _ domainLedger.IDailyQuotaStore = (*ValkeyQuotaStore)(nil)

func (s *ValkeyQuotaStore) key(channelID, day string) string {
	return s.client.Key("quota", channelID, day)
}

func (s *ValkeyQuotaStore) Get(ctx context.Context, channelID, day string) (int64, error) {
	inner := s.client.Inner()
	n, err := inner.Do(ctx, inner.B().Get().Key(s.key(channelID, day)).Build()).AsInt64()
	if valkey.IsNil(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read quota: %w", err)
	}
	return n, nil
}

func (s *ValkeyQuotaStore) Increment(ctx context.Context, channelID, day string, n int64) (int64, error) {
	return s.client.IncrByWithTTL(ctx, s.key(channelID, day), n, quotaKeyTTL)
}

type ValkeyDeduplicator struct {
	client *valkey.Client
	ttl    time.Duration
}

func NewValkeyDeduplicator(client *valkey.Client, ttl time.Duration) *ValkeyDeduplicator {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ValkeyDeduplicator{client: client, ttl: ttl}
}

var _ domainInbound.IDeduplicator = (*ValkeyDeduplicator)(nil)

func (d *ValkeyDeduplicator) Claim(ctx context.Context, channelID, providerMessageID string) (bool, error) {
	return d.client.SetNX(ctx, d.client.Key("dedup", channelID, providerMessageID), "1", d.ttl)
}

// ValkeyTokenBlacklist shares revoked sessions across servers. Tokens are
// stored hashed.
type ValkeyTokenBlacklist struct {
	client *valkey.Client
}

func NewValkeyTokenBlacklist(client *valkey.Client) *ValkeyTokenBlacklist {
	return &ValkeyTokenBlacklist{client: client}
}

var _ domainSession.ITokenBlacklist = (*ValkeyTokenBlacklist)(nil)

func (b *ValkeyTokenBlacklist) key(token string) string {
	sum := sha256.Sum256([]byte(token))
	return b.client.Key("revoked", hex.EncodeToString(sum[:]))
}

func (b *ValkeyTokenBlacklist) Revoke(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = defaultRevokeTTL
	}
	inner := b.client.Inner()
	cmd := inner.B().Set().Key(b.key(token)).Value("1").Ex(ttl).Build()
	if err := inner.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

func (b *ValkeyTokenBlacklist) IsRevoked(ctx context.Context, token string) (bool, error) {
	return b.client.Exists(ctx, b.key(token))
}
