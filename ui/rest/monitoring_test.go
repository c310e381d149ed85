package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	domainEvents "github.com/AzielCF/az-relay/domains/events"
	"github.com/AzielCF/az-relay/pkg/relaymonitor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitoringStats(t *testing.T) {
	monitor := relaymonitor.New(10, 0)
	require.NoError(t, monitor.Publish(context.Background(), domainEvents.Event{Type: domainEvents.TypeInboundMessage, ChannelID: "ch-1"}))

	app := newTestApp()
	InitRestMonitoring(app, monitor)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/monitor/stats", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var stats relaymonitor.Stats
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, resp).Results, &stats))
	assert.EqualValues(t, 1, stats.TotalInbound)
	require.Len(t, stats.RecentEvents, 1)
	assert.Equal(t, "ch-1", stats.RecentEvents[0].ChannelID)
}
