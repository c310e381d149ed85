package replygen

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	coreconfig "github.com/AzielCF/az-relay/core/config"
	domainCrm "github.com/AzielCF/az-relay/domains/crm"
	"github.com/sirupsen/logrus"
)

const (
	DefaultOpenAIModel = "gpt-4o-mini"
	DefaultGeminiModel = "gemini-2.0-flash"

	defaultHistoryLimit = 20
	defaultSystemPrompt = "Você é um atendente cordial de WhatsApp. Responda de forma curta e objetiva, no idioma do cliente."
)

// Options are shared by both generators. BaseURL and HTTPClient exist for tests
// and for proxies in front of the AI vendor.
type Options struct {
	APIKey       string
	Model        string
	SystemPrompt string
	HistoryLimit int
	BaseURL      string
	HTTPClient   *http.Client
}

func (o *Options) defaults(model string) {
	if o.Model == "" {
		o.Model = model
	}
	if o.SystemPrompt == "" {
		o.SystemPrompt = defaultSystemPrompt
	}
	if o.HistoryLimit <= 0 {
		o.HistoryLimit = defaultHistoryLimit
	}
}

type turn struct {
	fromContact bool
	text        string
}

// conversation loads prior turns and appends the message being answered when
// the history does not already end with it.
func conversation(ctx context.Context, history domainCrm.IConversationHistory, conversationID, lastMessage string, limit int) []turn {
	var turns []turn
	if history != nil && conversationID != "" {
		past, err := history.History(ctx, conversationID, limit)
		if err != nil {
			logrus.WithError(err).WithField("conversation_id", conversationID).Warn("[REPLYGEN] History unavailable, answering without context")
		}
		for _, m := range past {
			if strings.TrimSpace(m.Content) == "" {
				continue
			}
			turns = append(turns, turn{fromContact: m.Direction == domainCrm.DirectionInbound, text: m.Content})
		}
	}

	last := strings.TrimSpace(lastMessage)
	if n := len(turns); last != "" && (n == 0 || !turns[n-1].fromContact || turns[n-1].text != last) {
		turns = append(turns, turn{fromContact: true, text: last})
	}
	return turns
}

// New picks the generator named by AI_PROVIDER. An empty provider disables
// generated replies and returns nil.
func New(cfg coreconfig.AIConfig, history domainCrm.IConversationHistory) (domainCrm.IReplyGenerator, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "":
		return nil, nil
	case "openai":
		if cfg.OpenAIKey == "" {
			return nil, fmt.Errorf("AI_PROVIDER=openai requires OPENAI_API_KEY")
		}
		return NewOpenAI(Options{APIKey: cfg.OpenAIKey, Model: cfg.Model, SystemPrompt: cfg.SystemPrompt}, history), nil
	case "gemini":
		if cfg.GeminiKey == "" {
			return nil, fmt.Errorf("AI_PROVIDER=gemini requires GEMINI_API_KEY")
		}
		return NewGemini(Options{APIKey: cfg.GeminiKey, Model: cfg.Model, SystemPrompt: cfg.SystemPrompt}, history), nil
	default:
		return nil, fmt.Errorf("unknown AI_PROVIDER %q", cfg.Provider)
	}
}
