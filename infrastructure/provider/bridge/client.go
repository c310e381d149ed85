package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	domainBroadcast "github.com/AzielCF/az-relay/domains/broadcast"
	domainChannel "github.com/AzielCF/az-relay/domains/channel"
	domainProvider "github.com/AzielCF/az-relay/domains/provider"
	pkgError "github.com/AzielCF/az-relay/pkg/error"
	"github.com/AzielCF/az-relay/pkg/utils"
	"github.com/sirupsen/logrus"
)

const maxAttempts = 3

var (
	httpClient     = &http.Client{Timeout: 60 * time.Second}
	retryBaseDelay = 2 * time.Second
)

type Options struct {
	ServerURL     string
	InstanceName  string
	InstanceToken string
	ChannelType   domainChannel.ChannelType
	CountryCode   string

	// Local statics are inlined as base64 because the bridge cannot reach them.
	AppBaseURL     string
	BasePath       string
	StaticsDir     string
	InlineMaxBytes int64
	InlineMaxEdge  int

	// HTTPClient overrides the package client when set.
	HTTPClient *http.Client
}

// Client talks to an Evolution-style bridge for one instance.
type Client struct {
	opts Options
}

func NewClient(opts Options) *Client {
	opts.ServerURL = strings.TrimRight(opts.ServerURL, "/")
	if opts.InlineMaxBytes <= 0 {
		opts.InlineMaxBytes = 16 << 20
	}
	return &Client{opts: opts}
}

type sendResponse struct {
	Key struct {
		ID        string `json:"id"`
		RemoteJID string `json:"remoteJid"`
		FromMe    bool   `json:"fromMe"`
	} `json:"key"`
	Status string `json:"status"`
}

// destination normalizes WhatsApp numbers; other channel types address
// contacts by opaque ids that must pass through untouched.
func (c *Client) destination(to string) string {
	if c.opts.ChannelType == "" || c.opts.ChannelType == domainChannel.ChannelTypeWhatsApp {
		return utils.NormalizeForSend(to, c.opts.CountryCode)
	}
	return strings.TrimSpace(to)
}

func (c *Client) endpoint(action string) string {
	return c.opts.ServerURL + "/message/" + action + "/" + url.PathEscape(c.opts.InstanceName)
}

// post sends one request, retrying only when the bridge answers 429.
func (c *Client) post(ctx context.Context, action string, body any) (domainProvider.SendReceipt, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return domainProvider.SendReceipt{}, fmt.Errorf("failed to encode request: %w", err)
	}

	delay := retryBaseDelay
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		status, data, err := c.once(ctx, c.endpoint(action), payload)
		if err != nil {
			return domainProvider.SendReceipt{}, pkgError.ProviderSendError(fmt.Sprintf("bridge %s: %v", action, err))
		}

		if status == http.StatusTooManyRequests {
			if attempt == maxAttempts {
				break
			}
			logrus.WithFields(logrus.Fields{
				"instance": c.opts.InstanceName,
				"attempt":  attempt,
				"delay":    delay,
			}).Warn("[BRIDGE] Rate limited, backing off")
			select {
			case <-ctx.Done():
				return domainProvider.SendReceipt{}, pkgError.ProviderSendError(fmt.Sprintf("bridge %s: %v", action, ctx.Err()))
			case <-time.After(delay):
			}
			delay *= 2
			continue
		}

		if status >= 300 {
			return domainProvider.SendReceipt{}, pkgError.ProviderSendError(fmt.Sprintf("bridge %s returned %d: %s", action, status, snippet(data)))
		}

		var resp sendResponse
		if len(data) > 0 {
			if err := json.Unmarshal(data, &resp); err != nil {
				logrus.WithError(err).Debug("[BRIDGE] Unreadable send response, message id unknown")
			}
		}
		return domainProvider.SendReceipt{MessageID: resp.Key.ID}, nil
	}

	return domainProvider.SendReceipt{}, pkgError.ProviderSendError(fmt.Sprintf("bridge %s: still rate limited after %d attempts", action, maxAttempts))
}

func (c *Client) once(ctx context.Context, endpoint string, payload []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.opts.InstanceToken)

	resp, err := c.client().Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, data, nil
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 256 {
		return s[:256]
	}
	return s
}

func (c *Client) SendText(ctx context.Context, to, text string) (domainProvider.SendReceipt, error) {
	return c.post(ctx, "sendText", map[string]any{
		"number": c.destination(to),
		"text":   text,
	})
}

func (c *Client) SendMedia(ctx context.Context, to string, media domainBroadcast.MediaRef) (domainProvider.SendReceipt, error) {
	src, err := c.mediaSource(media)
	if err != nil {
		return domainProvider.SendReceipt{}, err
	}

	if media.Kind == domainBroadcast.MediaAudio {
		return c.post(ctx, "sendWhatsAppAudio", map[string]any{
			"number": c.destination(to),
			"audio":  src.data,
		})
	}

	body := map[string]any{
		"number":    c.destination(to),
		"mediatype": string(media.Kind),
		"media":     src.data,
		"caption":   media.Caption,
	}
	if mt := firstNonEmpty(media.MimeType, src.mimeType); mt != "" {
		body["mimetype"] = mt
	}
	if name := firstNonEmpty(media.FileName, src.fileName); name != "" {
		body["fileName"] = name
	}
	return c.post(ctx, "sendMedia", body)
}

func (c *Client) SendInteractive(ctx context.Context, to string, in domainBroadcast.InteractiveRef) (domainProvider.SendReceipt, error) {
	switch in.Type {
	case domainBroadcast.InteractiveButton:
		buttons := make([]map[string]string, 0, len(in.Choices))
		for _, ch := range in.Choices {
			buttons = append(buttons, map[string]string{"type": "reply", "displayText": ch.Title, "id": ch.ID})
		}
		return c.post(ctx, "sendButtons", map[string]any{
			"number":      c.destination(to),
			"title":       in.Title,
			"description": in.Body,
			"footer":      in.Footer,
			"buttons":     buttons,
		})
	case domainBroadcast.InteractiveList:
		rows := make([]map[string]string, 0, len(in.Choices))
		for _, ch := range in.Choices {
			rows = append(rows, map[string]string{"title": ch.Title, "description": ch.Description, "rowId": ch.ID})
		}
		return c.post(ctx, "sendList", map[string]any{
			"number":      c.destination(to),
			"title":       in.Title,
			"description": in.Body,
			"buttonText":  in.ButtonText,
			"footerText":  in.Footer,
			"sections":    []map[string]any{{"title": firstNonEmpty(in.Title, in.ButtonText), "rows": rows}},
		})
	default:
		return domainProvider.SendReceipt{}, pkgError.ValidationError("unsupported interactive type: " + string(in.Type))
	}
}

func (c *Client) SendTemplate(ctx context.Context, to string, tpl domainProvider.TemplateRef) (domainProvider.SendReceipt, error) {
	return domainProvider.SendReceipt{}, pkgError.UnsupportedOperationError("bridge channels do not support message templates")
}

func (c *Client) ListTemplates(ctx context.Context, wabaID string) ([]domainProvider.Template, error) {
	return nil, pkgError.UnsupportedOperationError("bridge channels do not support message templates")
}

func (c *Client) GetMediaInfo(ctx context.Context, mediaID string) (domainProvider.MediaInfo, error) {
	return domainProvider.MediaInfo{}, pkgError.UnsupportedOperationError("bridge webhooks carry media inline, lookup by id is not available")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func (c *Client) client() *http.Client {
	if c.opts.HTTPClient != nil {
		return c.opts.HTTPClient
	}
	return httpClient
}
