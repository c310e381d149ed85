package replygen

import (
	"context"
	"fmt"
	"strings"

	domainCrm "github.com/AzielCF/az-relay/domains/crm"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/sirupsen/logrus"
)

type OpenAIGenerator struct {
	opts    Options
	history domainCrm.IConversationHistory
}

func NewOpenAI(opts Options, history domainCrm.IConversationHistory) *OpenAIGenerator {
	opts.defaults(DefaultOpenAIModel)
	return &OpenAIGenerator{opts: opts, history: history}
}

func (g *OpenAIGenerator) GenerateReply(ctx context.Context, conversationID, lastMessage string) (string, error) {
	reqOpts := []option.RequestOption{option.WithAPIKey(g.opts.APIKey)}
	if g.opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(g.opts.BaseURL))
	}
	if g.opts.HTTPClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(g.opts.HTTPClient))
	}
	client := openai.NewClient(reqOpts...)

	messages := []openai.ChatCompletionMessageParamUnion{openai.SystemMessage(g.opts.SystemPrompt)}
	for _, t := range conversation(ctx, g.history, conversationID, lastMessage, g.opts.HistoryLimit) {
		if t.fromContact {
			messages = append(messages, openai.UserMessage(t.text))
		} else {
			messages = append(messages, openai.AssistantMessage(t.text))
		}
	}

	completion, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(g.opts.Model),
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("openai completion failed: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("no response from openai")
	}

	logrus.WithFields(logrus.Fields{
		"conversation_id": conversationID,
		"model":           g.opts.Model,
		"input_tokens":    completion.Usage.PromptTokens,
		"output_tokens":   completion.Usage.CompletionTokens,
	}).Debug("[OPENAI] Reply generated")

	return strings.TrimSpace(completion.Choices[0].Message.Content), nil
}
