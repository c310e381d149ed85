package rest

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	domainChannel "github.com/AzielCF/az-relay/domains/channel"
	domainInbound "github.com/AzielCF/az-relay/domains/inbound"
	pkgError "github.com/AzielCF/az-relay/pkg/error"
	"github.com/AzielCF/az-relay/pkg/msgworker"
	"github.com/AzielCF/az-relay/pkg/utils"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingInbound struct {
	mu       sync.Mutex
	token    string
	provider []domainChannel.Provider
	messages []domainInbound.Message
}

func (r *recordingInbound) Process(ctx context.Context, provider domainChannel.Provider, msg domainInbound.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.provider = append(r.provider, provider)
	r.messages = append(r.messages, msg)
	return nil
}

func (r *recordingInbound) VerifyToken(ctx context.Context, token string) bool {
	return token != "" && token == r.token
}

func (r *recordingInbound) received() []domainInbound.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domainInbound.Message(nil), r.messages...)
}

const officialTextPayload = `{"entry":[{"changes":[{"value":{
	"metadata":{"phone_number_id":"1055"},
	"contacts":[{"profile":{"name":"Ana"},"wa_id":"5511988887777"}],
	"messages":[{"from":"5511988887777","id":"wamid.1","timestamp":"1760000000","type":"text","text":{"body":"oi"}}]
}}]}]}`

func TestWebhookVerifyOfficial(t *testing.T) {
	app := newTestApp()
	InitRestWebhook(app, &recordingInbound{token: "s3cret"}, nil, "")

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/webhooks/official?hub.mode=subscribe&hub.verify_token=s3cret&hub.challenge=12345", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	challenge, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "12345", string(challenge))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/webhooks/official?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=1", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/webhooks/official?hub.mode=unsubscribe&hub.verify_token=s3cret", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestWebhookReceiveOfficial_Inline(t *testing.T) {
	inbound := &recordingInbound{}
	app := newTestApp()
	InitRestWebhook(app, inbound, nil, "")

	resp, err := app.Test(postJSON("/webhooks/official", officialTextPayload), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	msgs := inbound.received()
	require.Len(t, msgs, 1)
	assert.Equal(t, "oi", msgs[0].Text)
	assert.Equal(t, "1055", msgs[0].ProviderInstanceID)
	assert.Equal(t, domainChannel.ProviderOfficial, inbound.provider[0])
}

func TestWebhookReceiveOfficial_Signature(t *testing.T) {
	inbound := &recordingInbound{}
	app := newTestApp()
	InitRestWebhook(app, inbound, nil, "app-secret")

	req := postJSON("/webhooks/official", officialTextPayload)
	req.Header.Set("X-Hub-Signature-256", "sha256=deadbeef")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Empty(t, inbound.received())

	sig, err := utils.GetMessageDigestOrSignature([]byte(officialTextPayload), []byte("app-secret"))
	require.NoError(t, err)
	req = postJSON("/webhooks/official", officialTextPayload)
	req.Header.Set("X-Hub-Signature-256", "sha256="+sig)
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, inbound.received(), 1)
}

func TestWebhookReceive_IgnoresGarbageAndStatusUpdates(t *testing.T) {
	inbound := &recordingInbound{}
	app := newTestApp()
	InitRestWebhook(app, inbound, nil, "")

	for _, body := range []string{
		`not json`,
		`{"entry":[{"changes":[{"value":{"statuses":[{"id":"wamid.1","status":"read"}]}}]}]}`,
	} {
		resp, err := app.Test(postJSON("/webhooks/official", body), -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp, err := app.Test(postJSON("/webhooks/bridge", `{"event":"connection.update","data":{"state":"open"}}`), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Empty(t, inbound.received())
}

func TestWebhookReceive_UnreadablePayloadLoggedAsWebhookError(t *testing.T) {
	hook := logtest.NewGlobal()
	t.Cleanup(hook.Reset)

	inbound := &recordingInbound{}
	app := newTestApp()
	InitRestWebhook(app, inbound, nil, "")

	for _, path := range []string{"/webhooks/official", "/webhooks/bridge"} {
		hook.Reset()
		resp, err := app.Test(postJSON(path, `{broken`), -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var found bool
		for _, entry := range hook.AllEntries() {
			err, ok := entry.Data[logrus.ErrorKey].(error)
			if !ok {
				continue
			}
			var werr pkgError.WebhookError
			if errors.As(err, &werr) {
				found = true
				assert.Equal(t, "WEBHOOK_ERROR", entry.Data["code"])
				assert.Equal(t, logrus.WarnLevel, entry.Level)
			}
		}
		assert.True(t, found, path)
	}
	assert.Empty(t, inbound.received())
}

func TestWebhookReceiveBridge_PathInstanceThroughPool(t *testing.T) {
	inbound := &recordingInbound{}
	ctx, cancel := context.WithCancel(context.Background())
	pool := msgworker.NewMessageWorkerPool(2, 10)
	pool.Start(ctx)
	t.Cleanup(func() {
		cancel()
		pool.Stop()
	})

	app := newTestApp()
	InitRestWebhook(app, inbound, pool, "")

	body := `{"key":{"remoteJid":"5511977776666@s.whatsapp.net","fromMe":false,"id":"ABC"},"message":{"conversation":"bom dia"}}`
	resp, err := app.Test(postJSON("/webhooks/bridge/loja-centro", body), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.Eventually(t, func() bool { return len(inbound.received()) == 1 }, 2*time.Second, 10*time.Millisecond)
	msg := inbound.received()[0]
	assert.Equal(t, "bom dia", msg.Text)
	assert.Equal(t, "loja-centro", msg.ProviderInstanceID)
	assert.Equal(t, "5511977776666", msg.From)
	inbound.mu.Lock()
	assert.Equal(t, domainChannel.ProviderBridge, inbound.provider[0])
	inbound.mu.Unlock()
}
