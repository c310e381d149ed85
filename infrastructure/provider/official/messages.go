package official

import (
	"context"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	domainBroadcast "github.com/AzielCF/az-relay/domains/broadcast"
	domainProvider "github.com/AzielCF/az-relay/domains/provider"
	pkgError "github.com/AzielCF/az-relay/pkg/error"
	"github.com/AzielCF/az-relay/pkg/utils"
)

type sendResponse struct {
	Contacts []struct {
		Input string `json:"input"`
		WaID  string `json:"wa_id"`
	} `json:"contacts"`
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

type mediaObject struct {
	Link     string `json:"link"`
	Caption  string `json:"caption,omitempty"`
	Filename string `json:"filename,omitempty"`
}

type textObject struct {
	PreviewURL bool   `json:"preview_url"`
	Body       string `json:"body"`
}

type templateParam struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type templateComponent struct {
	Type       string          `json:"type"`
	Parameters []templateParam `json:"parameters"`
}

type templateObject struct {
	Name     string `json:"name"`
	Language struct {
		Code string `json:"code"`
	} `json:"language"`
	Components []templateComponent `json:"components,omitempty"`
}

func (c *Client) envelope(to, kind string) map[string]any {
	return map[string]any{
		"messaging_product": "whatsapp",
		"recipient_type":    "individual",
		"to":                utils.NormalizeForSend(to, c.opts.CountryCode),
		"type":              kind,
	}
}

func (c *Client) send(ctx context.Context, payload map[string]any, timeout time.Duration) (domainProvider.SendReceipt, error) {
	var resp sendResponse
	if err := c.do(ctx, http.MethodPost, c.endpoint(c.opts.PhoneNumberID, "messages"), payload, timeout, &resp); err != nil {
		return domainProvider.SendReceipt{}, err
	}
	var receipt domainProvider.SendReceipt
	if len(resp.Messages) > 0 {
		receipt.MessageID = resp.Messages[0].ID
	}
	return receipt, nil
}

// SendText only reaches users inside an open customer-service window.
func (c *Client) SendText(ctx context.Context, to, text string) (domainProvider.SendReceipt, error) {
	payload := c.envelope(to, "text")
	payload["text"] = textObject{Body: text}
	return c.send(ctx, payload, textTimeout)
}

func (c *Client) SendMedia(ctx context.Context, to string, media domainBroadcast.MediaRef) (domainProvider.SendReceipt, error) {
	kind := string(media.Kind)
	obj := mediaObject{Link: media.URL}

	switch media.Kind {
	case domainBroadcast.MediaImage, domainBroadcast.MediaVideo:
		obj.Caption = media.Caption
	case domainBroadcast.MediaDocument:
		obj.Caption = media.Caption
		obj.Filename = media.FileName
		if obj.Filename == "" {
			obj.Filename = fileNameFromURL(media.URL)
		}
	case domainBroadcast.MediaAudio:
		// audio messages reject captions
	default:
		return domainProvider.SendReceipt{}, pkgError.ValidationError("unsupported media kind: " + kind)
	}

	payload := c.envelope(to, kind)
	payload[kind] = obj
	return c.send(ctx, payload, mediaTimeout)
}

func (c *Client) SendTemplate(ctx context.Context, to string, tpl domainProvider.TemplateRef) (domainProvider.SendReceipt, error) {
	obj := templateObject{Name: tpl.Name}
	obj.Language.Code = tpl.Language
	if len(tpl.Params) > 0 {
		params := make([]templateParam, 0, len(tpl.Params))
		for _, p := range tpl.Params {
			params = append(params, templateParam{Type: "text", Text: p})
		}
		obj.Components = []templateComponent{{Type: "body", Parameters: params}}
	}

	payload := c.envelope(to, "template")
	payload["template"] = obj
	return c.send(ctx, payload, textTimeout)
}

// SendInteractive is rejected: outbound Official traffic is template based.
func (c *Client) SendInteractive(ctx context.Context, to string, in domainBroadcast.InteractiveRef) (domainProvider.SendReceipt, error) {
	return domainProvider.SendReceipt{}, pkgError.UnsupportedOperationError("official channels do not support interactive broadcasts")
}

func fileNameFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err == nil {
		if base := path.Base(u.Path); base != "" && base != "/" && base != "." {
			if unescaped, err := url.PathUnescape(base); err == nil {
				base = unescaped
			}
			return strings.TrimSpace(base)
		}
	}
	return "document"
}
