package official

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	domainProvider "github.com/AzielCF/az-relay/domains/provider"
	pkgError "github.com/AzielCF/az-relay/pkg/error"
)

const maxTemplatePages = 10

type templatePage struct {
	Data []struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Language string `json:"language"`
		Status   string `json:"status"`
		Category string `json:"category"`
	} `json:"data"`
	Paging struct {
		Cursors struct {
			After string `json:"after"`
		} `json:"cursors"`
		Next string `json:"next"`
	} `json:"paging"`
}

// ListTemplates returns every message template of the business account,
// following cursors for a bounded number of pages.
func (c *Client) ListTemplates(ctx context.Context, wabaID string) ([]domainProvider.Template, error) {
	if wabaID == "" {
		wabaID = c.opts.WabaID
	}
	if wabaID == "" {
		return nil, pkgError.CredentialsMissingError("waba_id is required to list templates")
	}

	var out []domainProvider.Template
	after := ""
	for page := 0; page < maxTemplatePages; page++ {
		q := url.Values{}
		q.Set("limit", strconv.Itoa(100))
		q.Set("fields", "id,name,language,status,category")
		if after != "" {
			q.Set("after", after)
		}

		var resp templatePage
		if err := c.do(ctx, http.MethodGet, c.endpoint(wabaID, "message_templates")+"?"+q.Encode(), nil, lookupTimeout, &resp); err != nil {
			return nil, err
		}
		for _, t := range resp.Data {
			out = append(out, domainProvider.Template{
				ID:       t.ID,
				Name:     t.Name,
				Language: t.Language,
				Status:   t.Status,
				Category: t.Category,
			})
		}
		if resp.Paging.Next == "" || resp.Paging.Cursors.After == "" {
			break
		}
		after = resp.Paging.Cursors.After
	}
	return out, nil
}

type mediaInfoResponse struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
	SHA256   string `json:"sha256"`
	FileSize int64  `json:"file_size"`
}

// GetMediaInfo resolves an inbound media id to its short-lived download URL.
func (c *Client) GetMediaInfo(ctx context.Context, mediaID string) (domainProvider.MediaInfo, error) {
	if mediaID == "" {
		return domainProvider.MediaInfo{}, pkgError.ValidationError("media id is required")
	}
	var resp mediaInfoResponse
	if err := c.do(ctx, http.MethodGet, c.endpoint(url.PathEscape(mediaID)), nil, lookupTimeout, &resp); err != nil {
		return domainProvider.MediaInfo{}, err
	}
	return domainProvider.MediaInfo{
		ID:       resp.ID,
		URL:      resp.URL,
		MimeType: resp.MimeType,
		FileSize: resp.FileSize,
		SHA256:   resp.SHA256,
	}, nil
}
