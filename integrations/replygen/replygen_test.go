package replygen

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	coreconfig "github.com/AzielCF/az-relay/core/config"
	domainCrm "github.com/AzielCF/az-relay/domains/crm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

type stubHistory struct {
	msgs []domainCrm.RecordedMessage
	err  error
}

func (s stubHistory) History(ctx context.Context, conversationID string, limit int) ([]domainCrm.RecordedMessage, error) {
	return s.msgs, s.err
}

func jsonResponse(body string) *http.Response {
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestConversation_AppendsLastMessageOnce(t *testing.T) {
	history := stubHistory{msgs: []domainCrm.RecordedMessage{
		{Direction: domainCrm.DirectionOutbound, Content: "Promoção de hoje!"},
		{Direction: domainCrm.DirectionInbound, Content: "quanto custa?"},
	}}

	turns := conversation(context.Background(), history, "conv-1", "quanto custa?", 10)
	require.Len(t, turns, 2)
	assert.False(t, turns[0].fromContact)
	assert.True(t, turns[1].fromContact)

	turns = conversation(context.Background(), history, "conv-1", "e o frete?", 10)
	require.Len(t, turns, 3)
	assert.Equal(t, "e o frete?", turns[2].text)

	turns = conversation(context.Background(), stubHistory{err: errors.New("db down")}, "conv-1", "oi", 10)
	require.Len(t, turns, 1)
	assert.Equal(t, "oi", turns[0].text)
}

func TestOpenAIGenerator_SendsHistoryAndReturnsReply(t *testing.T) {
	var captured map[string]any
	client := &http.Client{Transport: roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &captured))
		return jsonResponse(`{"id":"chatcmpl-1","object":"chat.completion","created":1714560000,"model":"gpt-4o-mini",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"  Custa R$ 49,90.  "}}],
			"usage":{"prompt_tokens":20,"completion_tokens":5,"total_tokens":25}}`), nil
	})}

	gen := NewOpenAI(Options{APIKey: "sk-test", BaseURL: "https://ai.test/v1/", HTTPClient: client, SystemPrompt: "seja breve"},
		stubHistory{msgs: []domainCrm.RecordedMessage{{Direction: domainCrm.DirectionOutbound, Content: "Olá!"}}})

	reply, err := gen.GenerateReply(context.Background(), "conv-1", "quanto custa?")
	require.NoError(t, err)
	assert.Equal(t, "Custa R$ 49,90.", reply)

	assert.Equal(t, DefaultOpenAIModel, captured["model"])
	msgs, _ := captured["messages"].([]any)
	require.Len(t, msgs, 3)
	roles := make([]string, len(msgs))
	for i, m := range msgs {
		roles[i], _ = m.(map[string]any)["role"].(string)
	}
	assert.Equal(t, []string{"system", "assistant", "user"}, roles)
}

func TestGeminiGenerator_ReturnsJoinedParts(t *testing.T) {
	var path string
	client := &http.Client{Transport: roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		path = r.URL.Path
		return jsonResponse(`{"candidates":[{"content":{"role":"model","parts":[{"text":"Oi! "},{"text":"Como posso ajudar?"}]}}]}`), nil
	})}

	gen := NewGemini(Options{APIKey: "g-test", BaseURL: "https://gemini.test/", HTTPClient: client}, nil)
	reply, err := gen.GenerateReply(context.Background(), "conv-1", "oi")
	require.NoError(t, err)
	assert.Equal(t, "Oi! Como posso ajudar?", reply)
	assert.Contains(t, path, DefaultGeminiModel+":generateContent")
}

func TestNew_SelectsByProvider(t *testing.T) {
	gen, err := New(coreconfig.AIConfig{}, nil)
	require.NoError(t, err)
	assert.Nil(t, gen)

	gen, err = New(coreconfig.AIConfig{Provider: "OpenAI", OpenAIKey: "sk"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &OpenAIGenerator{}, gen)

	gen, err = New(coreconfig.AIConfig{Provider: "gemini", GeminiKey: "g"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &GeminiGenerator{}, gen)

	_, err = New(coreconfig.AIConfig{Provider: "gemini"}, nil)
	assert.Error(t, err)
	_, err = New(coreconfig.AIConfig{Provider: "llama"}, nil)
	assert.Error(t, err)
}
