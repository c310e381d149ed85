package replygen

import (
	"context"
	"fmt"
	"strings"

	domainCrm "github.com/AzielCF/az-relay/domains/crm"
	"github.com/sirupsen/logrus"
	"google.golang.org/genai"
)

type GeminiGenerator struct {
	opts    Options
	history domainCrm.IConversationHistory
}

func NewGemini(opts Options, history domainCrm.IConversationHistory) *GeminiGenerator {
	opts.defaults(DefaultGeminiModel)
	return &GeminiGenerator{opts: opts, history: history}
}

func (g *GeminiGenerator) GenerateReply(ctx context.Context, conversationID, lastMessage string) (string, error) {
	cfg := &genai.ClientConfig{
		APIKey:  g.opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if g.opts.HTTPClient != nil {
		cfg.HTTPClient = g.opts.HTTPClient
	}
	if g.opts.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: g.opts.BaseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return "", fmt.Errorf("failed to create gemini client: %w", err)
	}

	var contents []*genai.Content
	for _, t := range conversation(ctx, g.history, conversationID, lastMessage, g.opts.HistoryLimit) {
		role := genai.RoleModel
		if t.fromContact {
			role = genai.RoleUser
		}
		contents = append(contents, &genai.Content{Role: role, Parts: []*genai.Part{{Text: t.text}}})
	}
	if len(contents) == 0 {
		return "", nil
	}

	result, err := client.Models.GenerateContent(ctx, g.opts.Model, contents, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(g.opts.SystemPrompt, ""),
	})
	if err != nil {
		return "", fmt.Errorf("gemini generation failed: %w", err)
	}
	if result == nil || len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return "", fmt.Errorf("no response from gemini")
	}

	var text strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}

	logrus.WithFields(logrus.Fields{
		"conversation_id": conversationID,
		"model":           g.opts.Model,
	}).Debug("[GEMINI] Reply generated")

	return strings.TrimSpace(text.String()), nil
}
