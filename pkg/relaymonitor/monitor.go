package relaymonitor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	domainEvents "github.com/AzielCF/az-relay/domains/events"
)

type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`
	ChannelID string    `json:"channel_id"`
	Data      any       `json:"data,omitempty"`
}

type Stats struct {
	TotalInbound        int64   `json:"total_inbound"`
	TotalSent           int64   `json:"total_sent"`
	TotalFailed         int64   `json:"total_failed"`
	BroadcastsCompleted int64   `json:"broadcasts_completed"`
	RecentEvents        []Event `json:"recent_events"`
}

// Monitor keeps counters and a ring of the latest events for this server.
// It subscribes to domain events like any other publisher.
type Monitor struct {
	eventsMu sync.Mutex
	events   []Event
	idx      int
	count    int
	ttl      time.Duration
	now      func() time.Time

	totalInbound        int64
	totalSent           int64
	totalFailed         int64
	broadcastsCompleted int64
}

// New keeps the last size events; events older than ttl are hidden from
// stats when ttl is positive.
func New(size int, ttl time.Duration) *Monitor {
	if size <= 0 {
		size = 200
	}
	return &Monitor{events: make([]Event, size), ttl: ttl, now: time.Now}
}

func (m *Monitor) Publish(ctx context.Context, evt domainEvents.Event) error {
	switch evt.Type {
	case domainEvents.TypeInboundMessage:
		atomic.AddInt64(&m.totalInbound, 1)
	case domainEvents.TypeBroadcastProgress:
		atomic.AddInt64(&m.totalSent, 1)
	case domainEvents.TypeBroadcastCompleted:
		atomic.AddInt64(&m.broadcastsCompleted, 1)
		if data, ok := evt.Data.(map[string]any); ok {
			if failed, ok := data["failed"].(int); ok {
				atomic.AddInt64(&m.totalFailed, int64(failed))
			}
		}
	}

	e := Event{Timestamp: evt.OccurredAt, Type: evt.Type, ChannelID: evt.ChannelID, Data: evt.Data}
	if e.Timestamp.IsZero() {
		e.Timestamp = m.now().UTC()
	}

	m.eventsMu.Lock()
	m.events[m.idx] = e
	m.idx = (m.idx + 1) % len(m.events)
	if m.count < len(m.events) {
		m.count++
	}
	m.eventsMu.Unlock()
	return nil
}

// GetStats returns the counters and the buffered events, oldest first.
func (m *Monitor) GetStats() Stats {
	m.eventsMu.Lock()
	defer m.eventsMu.Unlock()

	res := make([]Event, 0, m.count)
	var cutoff time.Time
	if m.ttl > 0 {
		cutoff = m.now().UTC().Add(-m.ttl)
	}
	start := (m.idx - m.count) % len(m.events)
	if start < 0 {
		start += len(m.events)
	}
	for i := 0; i < m.count; i++ {
		e := m.events[(start+i)%len(m.events)]
		if !cutoff.IsZero() && e.Timestamp.Before(cutoff) {
			continue
		}
		res = append(res, e)
	}

	return Stats{
		TotalInbound:        atomic.LoadInt64(&m.totalInbound),
		TotalSent:           atomic.LoadInt64(&m.totalSent),
		TotalFailed:         atomic.LoadInt64(&m.totalFailed),
		BroadcastsCompleted: atomic.LoadInt64(&m.broadcastsCompleted),
		RecentEvents:        res,
	}
}
