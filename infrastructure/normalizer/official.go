package normalizer

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	domainInbound "github.com/AzielCF/az-relay/domains/inbound"
	"github.com/AzielCF/az-relay/pkg/utils"
)

type officialWebhook struct {
	Object string `json:"object"`
	Entry  []struct {
		ID      string `json:"id"`
		Changes []struct {
			Field string        `json:"field"`
			Value officialValue `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type officialValue struct {
	MessagingProduct string `json:"messaging_product"`
	Metadata         struct {
		DisplayPhoneNumber string `json:"display_phone_number"`
		PhoneNumberID      string `json:"phone_number_id"`
	} `json:"metadata"`
	Contacts []struct {
		Profile struct {
			Name string `json:"name"`
		} `json:"profile"`
		WaID string `json:"wa_id"`
	} `json:"contacts"`
	Messages []officialMessage `json:"messages"`
	Statuses []json.RawMessage `json:"statuses"`
}

type officialMedia struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	SHA256   string `json:"sha256"`
	Caption  string `json:"caption"`
	Filename string `json:"filename"`
}

type officialMessage struct {
	From      string `json:"from"`
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      *struct {
		Body string `json:"body"`
	} `json:"text"`
	Interactive *struct {
		Type        string `json:"type"`
		ButtonReply *struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"button_reply"`
		ListReply *struct {
			ID          string `json:"id"`
			Title       string `json:"title"`
			Description string `json:"description"`
		} `json:"list_reply"`
	} `json:"interactive"`
	Button *struct {
		Text    string `json:"text"`
		Payload string `json:"payload"`
	} `json:"button"`
	Image    *officialMedia `json:"image"`
	Video    *officialMedia `json:"video"`
	Audio    *officialMedia `json:"audio"`
	Document *officialMedia `json:"document"`
	Sticker  *officialMedia `json:"sticker"`
	Location *struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Name      string  `json:"name"`
		Address   string  `json:"address"`
	} `json:"location"`
}

// NormalizeOfficial reads a Cloud API webhook. Status callbacks and payloads
// without a sender or text yield a nil message and a nil error.
func NormalizeOfficial(raw []byte) (*domainInbound.Message, error) {
	var hook officialWebhook
	if err := json.Unmarshal(raw, &hook); err != nil {
		return nil, fmt.Errorf("invalid official webhook payload: %w", err)
	}
	if len(hook.Entry) == 0 || len(hook.Entry[0].Changes) == 0 {
		return nil, nil
	}

	value := hook.Entry[0].Changes[0].Value
	if len(value.Messages) == 0 {
		return nil, nil
	}
	m := value.Messages[0]

	msg := &domainInbound.Message{
		From:               utils.OnlyDigits(m.From),
		ProviderMessageID:  m.ID,
		ProviderInstanceID: value.Metadata.PhoneNumberID,
		Timestamp:          parseUnix(m.Timestamp),
	}
	if len(value.Contacts) > 0 {
		msg.ContactName = strings.TrimSpace(value.Contacts[0].Profile.Name)
	}

	switch m.Type {
	case "text":
		msg.ContentType = domainInbound.ContentText
		if m.Text != nil {
			msg.Text = m.Text.Body
		}
	case "interactive":
		msg.ContentType = domainInbound.ContentInteractive
		if in := m.Interactive; in != nil {
			switch {
			case in.ButtonReply != nil:
				msg.Text = in.ButtonReply.Title
			case in.ListReply != nil:
				msg.Text = in.ListReply.Title
			}
		}
	case "button":
		msg.ContentType = domainInbound.ContentInteractive
		if m.Button != nil {
			msg.Text = m.Button.Text
		}
	case "image":
		officialMediaMessage(msg, domainInbound.ContentImage, m.Image)
	case "video":
		officialMediaMessage(msg, domainInbound.ContentVideo, m.Video)
	case "audio":
		officialMediaMessage(msg, domainInbound.ContentAudio, m.Audio)
	case "document":
		officialMediaMessage(msg, domainInbound.ContentDocument, m.Document)
	case "sticker":
		officialMediaMessage(msg, domainInbound.ContentSticker, m.Sticker)
	case "location":
		msg.ContentType = domainInbound.ContentLocation
		msg.Text = Placeholder(domainInbound.ContentLocation)
	case "contacts":
		msg.ContentType = domainInbound.ContentContact
		msg.Text = Placeholder(domainInbound.ContentContact)
	default:
		msg.ContentType = domainInbound.ContentUnsupported
		msg.Text = Placeholder(domainInbound.ContentUnsupported)
	}

	msg.Text = strings.TrimSpace(msg.Text)
	if msg.From == "" || msg.Text == "" {
		return nil, nil
	}
	return msg, nil
}

func officialMediaMessage(msg *domainInbound.Message, ct domainInbound.ContentType, media *officialMedia) {
	msg.ContentType = ct
	msg.Text = Placeholder(ct)
	if media == nil {
		return
	}
	if c := strings.TrimSpace(media.Caption); c != "" {
		msg.Text = c
	}
	msg.Media = &domainInbound.Media{
		Type:     ct,
		MimeType: media.MimeType,
		Caption:  media.Caption,
		FileName: media.Filename,
		MediaID:  media.ID,
	}
}

// parseUnix returns the zero time for missing or malformed timestamps.
func parseUnix(s string) time.Time {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n <= 0 {
		return time.Time{}
	}
	return time.Unix(n, 0).UTC()
}
