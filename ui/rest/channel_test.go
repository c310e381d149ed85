package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	domainProvider "github.com/AzielCF/az-relay/domains/provider"
	pkgError "github.com/AzielCF/az-relay/pkg/error"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChannelOps struct {
	templates []domainProvider.Template
	err       error
}

func (s stubChannelOps) ListTemplates(ctx context.Context, channelID string) ([]domainProvider.Template, error) {
	return s.templates, s.err
}

func (s stubChannelOps) GetMediaInfo(ctx context.Context, channelID, mediaID string) (domainProvider.MediaInfo, error) {
	if s.err != nil {
		return domainProvider.MediaInfo{}, s.err
	}
	return domainProvider.MediaInfo{ID: mediaID, URL: "https://cdn.example.com/" + mediaID}, nil
}

func TestChannelListTemplates(t *testing.T) {
	app := newTestApp()
	InitRestChannel(app, stubChannelOps{templates: []domainProvider.Template{{Name: "promo", Language: "pt_BR", Status: "APPROVED"}}})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/channels/ch-1/templates", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var templates []domainProvider.Template
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, resp).Results, &templates))
	require.Len(t, templates, 1)
	assert.Equal(t, "promo", templates[0].Name)
}

func TestChannelListTemplates_Unsupported(t *testing.T) {
	app := newTestApp()
	InitRestChannel(app, stubChannelOps{err: pkgError.UnsupportedOperationError("bridge channels do not support message templates")})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/channels/ch-1/templates", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "UNSUPPORTED_OPERATION", decodeEnvelope(t, resp).Code)
}

func TestChannelGetMedia(t *testing.T) {
	app := newTestApp()
	InitRestChannel(app, stubChannelOps{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/channels/ch-1/media/m-42", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var info domainProvider.MediaInfo
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, resp).Results, &info))
	assert.Equal(t, "m-42", info.ID)
}
