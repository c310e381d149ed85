package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	coreconfig "github.com/AzielCF/az-relay/core/config"
	domainBroadcast "github.com/AzielCF/az-relay/domains/broadcast"
	domainChannel "github.com/AzielCF/az-relay/domains/channel"
	domainEvents "github.com/AzielCF/az-relay/domains/events"
	domainProvider "github.com/AzielCF/az-relay/domains/provider"
	"github.com/AzielCF/az-relay/infrastructure/provider/bridge"
	pkgError "github.com/AzielCF/az-relay/pkg/error"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func testDispatchConfig() coreconfig.DispatchConfig {
	return coreconfig.DispatchConfig{
		CountryCode:      "55",
		BridgeDailyLimit: 200,
		BridgeDelayMin:   15 * time.Second,
		BridgeDelayMax:   45 * time.Second,
		OfficialDelayMin: 45 * time.Second,
		OfficialDelayMax: 120 * time.Second,
		ExtraJitterMax:   5 * time.Second,
	}
}

func bridgeChannel() domainChannel.Channel {
	return domainChannel.Channel{
		ID:             "ch-bridge",
		OrganizationID: "org-1",
		Name:           "Loja",
		Type:           domainChannel.ChannelTypeWhatsApp,
		Provider:       domainChannel.ProviderBridge,
		Enabled:        true,
		Config: domainChannel.Config{
			InstanceToken: "inst-key",
			ServerURL:     "https://bridge.test",
			InstanceName:  "loja-1",
		},
	}
}

func officialChannel() domainChannel.Channel {
	return domainChannel.Channel{
		ID:             "ch-official",
		OrganizationID: "org-1",
		Name:           "Oficial",
		Type:           domainChannel.ChannelTypeWhatsApp,
		Provider:       domainChannel.ProviderOfficial,
		Enabled:        true,
		Config: domainChannel.Config{
			PhoneNumberID: "1098765",
			AccessToken:   "tok",
			WabaID:        "waba-1",
		},
	}
}

type broadcastHarness struct {
	svc       domainBroadcast.IBroadcastUsecase
	adapter   *fakeAdapter
	factory   *fakeFactory
	quota     *fakeQuota
	campaigns *fakeCampaigns
	recorder  *fakeRecorder
	publisher *fakePublisher

	mu     sync.Mutex
	sleeps []time.Duration
}

func newBroadcastHarness(t *testing.T, adapter domainProvider.ISendAdapter, channels ...domainChannel.Channel) *broadcastHarness {
	t.Helper()
	h := &broadcastHarness{
		quota:     newFakeQuota(),
		campaigns: &fakeCampaigns{},
		recorder:  &fakeRecorder{},
		publisher: &fakePublisher{},
	}
	if fa, ok := adapter.(*fakeAdapter); ok {
		h.adapter = fa
	}
	h.factory = &fakeFactory{adapter: adapter}

	h.svc = NewBroadcastService(BroadcastDeps{
		Channels:   newFakeChannels(channels...),
		Resolver:   NewCredentialResolver(coreconfig.ProvidersConfig{}),
		Recipients: NewRecipientResolver(&fakeLeads{}),
		Adapters:   h.factory,
		Quotas:     h.quota,
		Campaigns:  h.campaigns,
		Recorder:   h.recorder,
		Publisher:  h.publisher,
		Dispatch:   testDispatchConfig(),
	},
		WithClock(func() time.Time { return fixedNow }),
		WithSleeper(func(ctx context.Context, d time.Duration) {
			h.mu.Lock()
			h.sleeps = append(h.sleeps, d)
			h.mu.Unlock()
		}),
	)
	return h
}

func TestBroadcast_QuotaIsAllOrNothing(t *testing.T) {
	adapter := &fakeAdapter{}
	h := newBroadcastHarness(t, adapter, bridgeChannel())
	_, _ = h.quota.Increment(context.Background(), "ch-bridge", "2024-05-01", 199)

	_, err := h.svc.Send(context.Background(), domainBroadcast.SendRequest{
		ChannelID: "ch-bridge",
		Numbers:   []string{"5511999990001", "5511999990002"},
		Message:   "oi",
	})

	var quotaErr pkgError.QuotaExceededError
	require.ErrorAs(t, err, &quotaErr)
	assert.Contains(t, err.Error(), "remaining daily capacity of 1")
	assert.Empty(t, adapter.Calls())
	assert.Equal(t, 0, h.factory.built)
}

func TestBroadcast_QuotaAlreadyReached(t *testing.T) {
	adapter := &fakeAdapter{}
	h := newBroadcastHarness(t, adapter, bridgeChannel())
	_, _ = h.quota.Increment(context.Background(), "ch-bridge", "2024-05-01", 200)

	_, err := h.svc.Send(context.Background(), domainBroadcast.SendRequest{
		ChannelID: "ch-bridge",
		Numbers:   []string{"5511999990001"},
		Message:   "oi",
	})

	var quotaErr pkgError.QuotaExceededError
	require.ErrorAs(t, err, &quotaErr)
	assert.Empty(t, adapter.Calls())
}

func TestBroadcast_ChannelDailyLimitOverridesDefault(t *testing.T) {
	ch := bridgeChannel()
	ch.Config.DailyLimit = 1
	h := newBroadcastHarness(t, &fakeAdapter{}, ch)

	_, err := h.svc.Send(context.Background(), domainBroadcast.SendRequest{
		ChannelID: ch.ID,
		Numbers:   []string{"5511999990001", "5511999990002"},
		Message:   "oi",
	})

	var quotaErr pkgError.QuotaExceededError
	assert.ErrorAs(t, err, &quotaErr)
}

func TestBroadcast_BridgeTwoNumbersEndToEnd(t *testing.T) {
	var (
		mu      sync.Mutex
		numbers []string
	)
	stub := &http.Client{Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		var body map[string]any
		b, _ := io.ReadAll(req.Body)
		_ = json.Unmarshal(b, &body)
		mu.Lock()
		numbers = append(numbers, body["number"].(string))
		mu.Unlock()
		return &http.Response{
			StatusCode: http.StatusCreated,
			Body:       io.NopCloser(bytes.NewReader([]byte(`{"key":{"id":"BAE5"}}`))),
			Header:     make(http.Header),
		}, nil
	})}
	adapter := bridge.NewClient(bridge.Options{
		ServerURL:     "https://bridge.test",
		InstanceName:  "loja-1",
		InstanceToken: "inst-key",
		ChannelType:   domainChannel.ChannelTypeWhatsApp,
		CountryCode:   "55",
		HTTPClient:    stub,
	})
	h := newBroadcastHarness(t, adapter, bridgeChannel())

	result, err := h.svc.Send(context.Background(), domainBroadcast.SendRequest{
		ChannelID: "ch-bridge",
		Numbers:   []string{"(11) 99999-0001", "11999990002"},
		Message:   "Promo de hoje",
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Sent)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, []string{"5511999990001", "5511999990002"}, numbers)

	require.Len(t, h.sleeps, 1)
	assert.GreaterOrEqual(t, h.sleeps[0], 15*time.Second)
	assert.LessOrEqual(t, h.sleeps[0], 50*time.Second)

	count, _ := h.quota.Get(context.Background(), "ch-bridge", "2024-05-01")
	assert.Equal(t, int64(2), count)
}

func TestBroadcast_OfficialPlainTextRejectedBeforeAnyCall(t *testing.T) {
	adapter := &fakeAdapter{}
	h := newBroadcastHarness(t, adapter, officialChannel())

	_, err := h.svc.Send(context.Background(), domainBroadcast.SendRequest{
		ChannelID: "ch-official",
		Numbers:   []string{"5511999990001"},
		Message:   "free text",
	})

	var vErr pkgError.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Empty(t, adapter.Calls())
	assert.Equal(t, 0, h.factory.built)
}

func TestBroadcast_OfficialSendsTemplateWithDefaultLanguage(t *testing.T) {
	adapter := &fakeAdapter{}
	h := newBroadcastHarness(t, adapter, officialChannel())

	result, err := h.svc.Send(context.Background(), domainBroadcast.SendRequest{
		ChannelID:      "ch-official",
		Numbers:        []string{"5511999990001", "5511999990002"},
		TemplateName:   "promo",
		TemplateParams: []string{"Ana"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Sent)

	calls := adapter.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "template", calls[0].Op)
	assert.Equal(t, "pt_BR", calls[0].Template.Language)

	require.Len(t, h.sleeps, 1)
	assert.GreaterOrEqual(t, h.sleeps[0], 45*time.Second)
	assert.LessOrEqual(t, h.sleeps[0], 125*time.Second)

	// official channels do not consume the local daily quota
	count, _ := h.quota.Get(context.Background(), "ch-official", "2024-05-01")
	assert.Equal(t, int64(0), count)
}

func TestBroadcast_RateLimitedRecipientDoesNotStopLoop(t *testing.T) {
	adapter := &fakeAdapter{failFor: map[string]error{
		"5511999990001": pkgError.ProviderSendError("bridge sendText: still rate limited after 3 attempts"),
	}}
	h := newBroadcastHarness(t, adapter, bridgeChannel())

	result, err := h.svc.Send(context.Background(), domainBroadcast.SendRequest{
		ChannelID: "ch-bridge",
		Numbers:   []string{"5511999990001", "5511999990002"},
		Message:   "oi",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Sent)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "5511999990001")
	assert.Len(t, adapter.Calls(), 2)

	count, _ := h.quota.Get(context.Background(), "ch-bridge", "2024-05-01")
	assert.Equal(t, int64(1), count)
}

func TestBroadcast_PanicBecomesOutcome(t *testing.T) {
	adapter := &fakeAdapter{panicFor: map[string]bool{"5511999990001": true}}
	h := newBroadcastHarness(t, adapter, bridgeChannel())

	result, err := h.svc.Send(context.Background(), domainBroadcast.SendRequest{
		ChannelID: "ch-bridge",
		Numbers:   []string{"5511999990001", "5511999990002"},
		Message:   "oi",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Sent)
	assert.Equal(t, 1, result.Failed)
	assert.False(t, result.Outcomes[0].Success)
	assert.Contains(t, result.Outcomes[0].Error, "adapter exploded")
	assert.True(t, result.Outcomes[1].Success)
}

func TestBroadcast_CampaignLedgerGetsOneBatchedIncrement(t *testing.T) {
	adapter := &fakeAdapter{}
	h := newBroadcastHarness(t, adapter, bridgeChannel())

	result, err := h.svc.Send(context.Background(), domainBroadcast.SendRequest{
		ChannelID:    "ch-bridge",
		CampaignName: "maio",
		Numbers:      []string{"5511999990001", "5511999990002", "5511999990003"},
		Message:      "oi",
	})
	require.NoError(t, err)

	require.Len(t, h.campaigns.created, 1)
	assert.Equal(t, "maio", h.campaigns.created[0].Name)
	assert.Equal(t, h.campaigns.created[0].ID, result.CampaignID)
	assert.Equal(t, []int64{3}, h.campaigns.increments)
}

func TestBroadcast_RecorderPanicDoesNotAbortLoop(t *testing.T) {
	adapter := &fakeAdapter{}
	h := newBroadcastHarness(t, adapter, bridgeChannel())
	h.recorder.panics = true

	var (
		result domainBroadcast.SendResult
		err    error
	)
	assert.NotPanics(t, func() {
		result, err = h.svc.Send(context.Background(), domainBroadcast.SendRequest{
			ChannelID:    "ch-bridge",
			CampaignName: "maio",
			Numbers:      []string{"5511999990001", "5511999990002"},
			Message:      "oi",
		})
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Sent)
	assert.Zero(t, result.Failed)
	assert.Len(t, adapter.Calls(), 2)
	n, _ := h.quota.Get(context.Background(), "ch-bridge", "2024-05-01")
	assert.Equal(t, int64(2), n)
	assert.Equal(t, []int64{2}, h.campaigns.increments)
	assert.Contains(t, h.publisher.Types(), domainEvents.TypeBroadcastCompleted)
}

func TestBroadcast_RecorderErrorIsLoggedAndLoopContinues(t *testing.T) {
	adapter := &fakeAdapter{}
	h := newBroadcastHarness(t, adapter, bridgeChannel())
	h.recorder.fail = errors.New("db down")

	result, err := h.svc.Send(context.Background(), domainBroadcast.SendRequest{
		ChannelID: "ch-bridge",
		Numbers:   []string{"5511999990001", "5511999990002"},
		Message:   "oi",
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Sent)
	assert.Empty(t, result.Errors)
	assert.Empty(t, h.recorder.messages)
	n, _ := h.quota.Get(context.Background(), "ch-bridge", "2024-05-01")
	assert.Equal(t, int64(2), n)
}

func TestBroadcast_QuotaChargedToDayOfSend(t *testing.T) {
	quota := newFakeQuota()
	now := time.Date(2024, 5, 1, 23, 59, 50, 0, time.UTC)

	svc := NewBroadcastService(BroadcastDeps{
		Channels:   newFakeChannels(bridgeChannel()),
		Resolver:   NewCredentialResolver(coreconfig.ProvidersConfig{}),
		Recipients: NewRecipientResolver(&fakeLeads{}),
		Adapters:   &fakeFactory{adapter: &fakeAdapter{}},
		Quotas:     quota,
		Campaigns:  &fakeCampaigns{},
		Recorder:   &fakeRecorder{},
		Publisher:  &fakePublisher{},
		Dispatch:   testDispatchConfig(),
	},
		WithClock(func() time.Time { return now }),
		WithSleeper(func(ctx context.Context, d time.Duration) { now = now.Add(d) }),
	)

	result, err := svc.Send(context.Background(), domainBroadcast.SendRequest{
		ChannelID: "ch-bridge",
		Numbers:   []string{"5511999990001", "5511999990002"},
		Message:   "oi",
	})
	require.NoError(t, err)
	require.Equal(t, 2, result.Sent)

	before, _ := quota.Get(context.Background(), "ch-bridge", "2024-05-01")
	after, _ := quota.Get(context.Background(), "ch-bridge", "2024-05-02")
	assert.Equal(t, int64(1), before)
	assert.Equal(t, int64(1), after)
}

func TestBroadcast_CallerCancellationDoesNotAbortLoop(t *testing.T) {
	adapter := &fakeAdapter{}
	h := newBroadcastHarness(t, adapter, bridgeChannel())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := h.svc.Send(ctx, domainBroadcast.SendRequest{
		ChannelID: "ch-bridge",
		Numbers:   []string{"5511999990001", "5511999990002"},
		Message:   "oi",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Sent)
}

func TestBroadcast_BridgeContentSelection(t *testing.T) {
	adapter := &fakeAdapter{}
	h := newBroadcastHarness(t, adapter, bridgeChannel())

	_, err := h.svc.Send(context.Background(), domainBroadcast.SendRequest{
		ChannelID: "ch-bridge",
		Numbers:   []string{"5511999990001"},
		Message:   "legenda",
		Media:     &domainBroadcast.MediaRef{URL: "https://cdn.test/a.png", Kind: domainBroadcast.MediaImage},
	})
	require.NoError(t, err)

	_, err = h.svc.Send(context.Background(), domainBroadcast.SendRequest{
		ChannelID: "ch-bridge",
		Numbers:   []string{"5511999990001"},
		Media:     &domainBroadcast.MediaRef{URL: "https://cdn.test/a.png", Kind: domainBroadcast.MediaImage},
		Interactive: &domainBroadcast.InteractiveRef{
			Type: domainBroadcast.InteractiveButton, Body: "Escolha",
			Choices: []domainBroadcast.Choice{{ID: "1", Title: "Sim"}},
		},
	})
	require.NoError(t, err)

	calls := adapter.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "media", calls[0].Op)
	assert.Equal(t, "legenda", calls[0].Media.Caption)
	assert.Equal(t, "interactive", calls[1].Op)
}

func TestBroadcast_RecordsAndPublishes(t *testing.T) {
	adapter := &fakeAdapter{}
	h := newBroadcastHarness(t, adapter, bridgeChannel())

	_, err := h.svc.Send(context.Background(), domainBroadcast.SendRequest{
		ChannelID: "ch-bridge",
		Numbers:   []string{"5511999990001", "5511999990002"},
		Message:   "oi",
	})
	require.NoError(t, err)

	assert.Len(t, h.recorder.messages, 2)
	assert.Equal(t, "oi", h.recorder.messages[0].Content)
	assert.Equal(t, []string{
		domainEvents.TypeBroadcastProgress,
		domainEvents.TypeBroadcastProgress,
		domainEvents.TypeBroadcastCompleted,
	}, h.publisher.Types())
}

func TestBroadcast_UnknownChannelIsNotFound(t *testing.T) {
	h := newBroadcastHarness(t, &fakeAdapter{})

	_, err := h.svc.Send(context.Background(), domainBroadcast.SendRequest{ChannelID: "nope", Numbers: []string{"5511999990001"}, Message: "x"})
	var nf pkgError.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestBroadcast_MissingCredentials(t *testing.T) {
	ch := bridgeChannel()
	ch.Config.ServerURL = ""
	h := newBroadcastHarness(t, &fakeAdapter{}, ch)

	_, err := h.svc.Send(context.Background(), domainBroadcast.SendRequest{ChannelID: ch.ID, Numbers: []string{"5511999990001"}, Message: "x"})
	var credErr pkgError.CredentialsMissingError
	require.ErrorAs(t, err, &credErr)
	assert.Contains(t, err.Error(), "server_url")
}

func TestBroadcast_Quota(t *testing.T) {
	h := newBroadcastHarness(t, &fakeAdapter{}, bridgeChannel(), officialChannel())
	_, _ = h.quota.Increment(context.Background(), "ch-bridge", "2024-05-01", 150)

	status, err := h.svc.Quota(context.Background(), "ch-bridge")
	require.NoError(t, err)
	assert.Equal(t, int64(150), status.Count)
	assert.Equal(t, int64(200), status.Limit)
	assert.Equal(t, int64(50), status.Remaining)
	assert.Equal(t, "2024-05-01", status.Day)

	status, err = h.svc.Quota(context.Background(), "ch-official")
	require.NoError(t, err)
	assert.Equal(t, int64(0), status.Limit)
}

func TestPacer_BoundsIncludeJitter(t *testing.T) {
	p := NewPacer(testDispatchConfig())

	p.int63n = func(n int64) int64 { return 0 }
	assert.Equal(t, 15*time.Second, p.Delay(domainChannel.ProviderBridge))
	assert.Equal(t, 45*time.Second, p.Delay(domainChannel.ProviderOfficial))

	p.int63n = func(n int64) int64 { return n - 1 }
	assert.Equal(t, 50*time.Second, p.Delay(domainChannel.ProviderBridge))
	assert.Equal(t, 125*time.Second, p.Delay(domainChannel.ProviderOfficial))

	live := NewPacer(testDispatchConfig())
	for i := 0; i < 200; i++ {
		d := live.Delay(domainChannel.ProviderBridge)
		assert.GreaterOrEqual(t, d, 15*time.Second)
		assert.LessOrEqual(t, d, 50*time.Second)
	}
}
