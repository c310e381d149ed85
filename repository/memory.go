package repository

import (
	"context"
	"sync"
	"time"

	domainInbound "github.com/AzielCF/az-relay/domains/inbound"
	domainSession "github.com/AzielCF/az-relay/domains/session"
)

// Memory stores back single-server deployments, selected when valkey is off.
// The daily quota falls back to the database instead, see QuotaGormStore.

const defaultRevokeTTL = 24 * time.Hour

// expiringSet is a string set whose members disappear after their TTL.
type expiringSet struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
	writes  int
}

func newExpiringSet() *expiringSet {
	return &expiringSet{entries: make(map[string]time.Time), now: time.Now}
}

// add inserts key unless a live entry exists and reports whether it did.
func (s *expiringSet) add(key string, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if exp, ok := s.entries[key]; ok && now.Before(exp) {
		return false
	}
	s.entries[key] = now.Add(ttl)

	s.writes++
	if s.writes%1024 == 0 {
		for k, exp := range s.entries {
			if !now.Before(exp) {
				delete(s.entries, k)
			}
		}
	}
	return true
}

func (s *expiringSet) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.entries[key]
	if !ok {
		return false
	}
	if !s.now().Before(exp) {
		delete(s.entries, key)
		return false
	}
	return true
}

type MemoryDeduplicator struct {
	set *expiringSet
	ttl time.Duration
}

func NewMemoryDeduplicator(ttl time.Duration) *MemoryDeduplicator {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &MemoryDeduplicator{set: newExpiringSet(), ttl: ttl}
}

var _ domainInbound.IDeduplicator = (*MemoryDeduplicator)(nil)

func (d *MemoryDeduplicator) Claim(ctx context.Context, channelID, providerMessageID string) (bool, error) {
	return d.set.add(channelID+"|"+providerMessageID, d.ttl), nil
}

type MemoryTokenBlacklist struct {
	set *expiringSet
}

func NewMemoryTokenBlacklist() *MemoryTokenBlacklist {
	return &MemoryTokenBlacklist{set: newExpiringSet()}
}

var _ domainSession.ITokenBlacklist = (*MemoryTokenBlacklist)(nil)

func (b *MemoryTokenBlacklist) Revoke(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = defaultRevokeTTL
	}
	b.set.add(token, ttl)
	return nil
}

func (b *MemoryTokenBlacklist) IsRevoked(ctx context.Context, token string) (bool, error) {
	return b.set.has(token), nil
}
