package normalizer

import (
	"encoding/json"
	"fmt"
	"strings"

	domainInbound "github.com/AzielCF/az-relay/domains/inbound"
	"github.com/AzielCF/az-relay/pkg/utils"
	"github.com/sirupsen/logrus"
	"go.mau.fi/whatsmeow/types"
)

// envelope is a bridge message located inside a webhook body, together with
// the instance name the body was addressed from.
type envelope struct {
	message  map[string]any
	instance string
	// extra carries media fields that some events keep beside the message.
	extra map[string]any
}

// envelopeStrategy recognizes one webhook shape. Strategies are tried in
// order; the first whose match returns true owns the body, even when its
// extract then finds nothing.
type envelopeStrategy struct {
	name    string
	match   func(root any) bool
	extract func(root any) (envelope, bool)
}

var messageEvents = map[string]bool{
	"messages.upsert":  true,
	"messages":         true,
	"message":          true,
	"message.received": true,
	"file.downloaded":  true,
	"media.downloaded": true,
}

// eventName folds MESSAGES_UPSERT, messages-upsert and messages.upsert together.
func eventName(root any) string {
	e := strings.ToLower(str(asMap(root), "event"))
	return strings.NewReplacer("_", ".", "-", ".").Replace(e)
}

func rootInstance(root map[string]any) string {
	if s := firstStr(root, "instance", "instanceName", "instanceId"); s != "" {
		return s
	}
	return str(root, "instance", "instanceName")
}

// firstMessage unwraps data that may be a message, a list of messages or an
// object holding a messages list.
func firstMessage(v any) map[string]any {
	switch t := v.(type) {
	case map[string]any:
		if list := asSlice(t["messages"]); len(list) > 0 {
			return asMap(list[0])
		}
		return t
	case []any:
		if len(t) > 0 {
			return asMap(t[0])
		}
	}
	return nil
}

func looksLikeMessage(m map[string]any) bool {
	if m == nil {
		return false
	}
	for _, k := range []string{"key", "message", "from", "remoteJid", "messageType"} {
		if _, ok := m[k]; ok {
			return true
		}
	}
	return false
}

var bridgeStrategies = []envelopeStrategy{
	{
		name:  "messages.upsert",
		match: func(root any) bool { return eventName(root) == "messages.upsert" },
		extract: func(root any) (envelope, bool) {
			r := asMap(root)
			msg := firstMessage(r["data"])
			return envelope{message: msg, instance: rootInstance(r)}, msg != nil
		},
	},
	{
		name: "file.downloaded",
		match: func(root any) bool {
			e := eventName(root)
			return e == "file.downloaded" || e == "media.downloaded"
		},
		extract: func(root any) (envelope, bool) {
			r := asMap(root)
			data := asMap(r["data"])
			if data == nil {
				return envelope{}, false
			}
			msg := data
			if inner := asMap(data["message"]); inner != nil && inner["key"] != nil {
				msg = inner
			}
			return envelope{message: msg, instance: rootInstance(r), extra: data}, true
		},
	},
	{
		// connection, presence, receipts and every other non-message event
		name: "non-message event",
		match: func(root any) bool {
			e := eventName(root)
			return e != "" && !messageEvents[e]
		},
		extract: func(root any) (envelope, bool) { return envelope{}, false },
	},
	{
		name: "messages array",
		match: func(root any) bool {
			return len(asSlice(asMap(root)["messages"])) > 0
		},
		extract: func(root any) (envelope, bool) {
			r := asMap(root)
			msg := asMap(asSlice(r["messages"])[0])
			return envelope{message: msg, instance: rootInstance(r)}, msg != nil
		},
	},
	{
		name: "data wrapper",
		match: func(root any) bool {
			switch asMap(root)["data"].(type) {
			case map[string]any, []any:
				return true
			}
			return false
		},
		extract: func(root any) (envelope, bool) {
			r := asMap(root)
			msg := firstMessage(r["data"])
			return envelope{message: msg, instance: rootInstance(r)}, msg != nil
		},
	},
	{
		name:  "raw array",
		match: func(root any) bool { _, ok := root.([]any); return ok },
		extract: func(root any) (envelope, bool) {
			msg := firstMessage(root)
			return envelope{message: msg}, msg != nil
		},
	},
	{
		name:  "bare message",
		match: func(root any) bool { return looksLikeMessage(asMap(root)) },
		extract: func(root any) (envelope, bool) {
			r := asMap(root)
			return envelope{message: r, instance: rootInstance(r)}, true
		},
	},
}

// NormalizeBridge reads any of the webhook shapes bridges are known to send.
// Non-message events, status updates and bodies without a usable sender or
// text yield a nil message and a nil error.
func NormalizeBridge(raw []byte) (*domainInbound.Message, error) {
	var root any
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, fmt.Errorf("invalid bridge webhook payload: %w", err)
	}

	for _, s := range bridgeStrategies {
		if !s.match(root) {
			continue
		}
		env, ok := s.extract(root)
		if !ok {
			logrus.WithField("shape", s.name).Debug("[NORMALIZER] Bridge webhook carries no message")
			return nil, nil
		}
		return fromEnvelope(env), nil
	}
	return nil, nil
}

func fromEnvelope(env envelope) *domainInbound.Message {
	m := env.message
	if m == nil || isStatusUpdate(m) {
		return nil
	}

	from, isGroup := sender(m)
	msg := &domainInbound.Message{
		From:               from,
		IsGroup:            isGroup,
		FromMe:             boolean(m, "key", "fromMe") || boolean(m, "fromMe"),
		ProviderMessageID:  firstNonEmpty(str(m, "key", "id"), firstStr(m, "id", "messageId")),
		Timestamp:          unixTime(firstPresent(m, "messageTimestamp", "timestamp", "t")),
		ContactName:        firstStr(m, "pushName", "notifyName", "senderName"),
		ProviderInstanceID: firstNonEmpty(env.instance, firstStr(m, "instance", "instanceId")),
	}

	msg.Text, msg.ContentType, msg.Media = content(m, env.extra)
	if msg.From == "" || msg.Text == "" {
		return nil
	}
	return msg
}

func isStatusUpdate(m map[string]any) bool {
	if str(m, "key", "remoteJid") == "status@broadcast" || str(m, "remoteJid") == "status@broadcast" {
		return true
	}
	// message-update events carry a delivery status and no content
	_, hasStatus := m["status"]
	_, hasMessage := m["message"]
	return hasStatus && !hasMessage && str(m, "messageType") == "" && firstStr(m, "text", "body", "content") == ""
}

// sender resolves the phone behind a message. Privacy ids (@lid) are swapped
// for the phone-number jid the bridge reports alongside, when present.
func sender(m map[string]any) (string, bool) {
	jid := str(m, "key", "remoteJid")
	if strings.HasSuffix(jid, "@"+types.HiddenUserServer) {
		if alt := firstNonEmpty(str(m, "key", "senderPn"), str(m, "key", "remoteJidAlt"), firstStr(m, "senderPn", "remoteJidAlt")); alt != "" {
			jid = alt
		}
	}
	if jid == "" {
		jid = firstStr(m, "remoteJid", "from", "sender", "number", "chatId")
	}
	if jid == "" {
		return "", false
	}

	if !strings.Contains(jid, "@") {
		return utils.OnlyDigits(jid), false
	}
	parsed, err := types.ParseJID(jid)
	if err != nil {
		return utils.OnlyDigits(strings.SplitN(jid, "@", 2)[0]), utils.IsGroupJID(jid)
	}
	return utils.OnlyDigits(parsed.User), parsed.Server == types.GroupServer
}

type mediaVariant struct {
	key string
	ct  domainInbound.ContentType
}

var mediaVariants = []mediaVariant{
	{"imageMessage", domainInbound.ContentImage},
	{"videoMessage", domainInbound.ContentVideo},
	{"audioMessage", domainInbound.ContentAudio},
	{"documentMessage", domainInbound.ContentDocument},
	{"stickerMessage", domainInbound.ContentSticker},
}

// content extracts the text of a message in a fixed cascade: plain
// conversation, extended text, media caption, interactive replies, loose
// text fields, and finally a placeholder for the detected type.
func content(m, extra map[string]any) (string, domainInbound.ContentType, *domainInbound.Media) {
	body := asMap(m["message"])
	if wrapped := asMap(path(body, "documentWithCaptionMessage", "message")); wrapped != nil {
		body = wrapped
	}
	if eph := asMap(path(body, "ephemeralMessage", "message")); eph != nil {
		body = eph
	}

	ct := typeFromMessageType(str(m, "messageType"))
	var media *domainInbound.Media
	for _, v := range mediaVariants {
		node := asMap(body[v.key])
		if node == nil {
			continue
		}
		ct = v.ct
		media = &domainInbound.Media{
			Type:     v.ct,
			URL:      str(node, "url"),
			MimeType: str(node, "mimetype"),
			Caption:  str(node, "caption"),
			FileName: firstStr(node, "fileName", "title"),
			MediaKey: str(node, "mediaKey"),
		}
		break
	}
	switch {
	case body["locationMessage"] != nil || body["liveLocationMessage"] != nil:
		ct = domainInbound.ContentLocation
	case body["contactMessage"] != nil || body["contactsArrayMessage"] != nil:
		ct = domainInbound.ContentContact
	}

	if media == nil && isMediaType(ct) {
		media = &domainInbound.Media{Type: ct}
	}
	if media != nil {
		fillLooseMedia(media, m, body, extra)
	}

	text := firstNonEmpty(
		str(body, "conversation"),
		str(body, "extendedTextMessage", "text"),
	)
	if text != "" {
		return text, domainInbound.ContentText, media
	}
	if media != nil && media.Caption != "" {
		return media.Caption, ct, media
	}

	if reply := firstNonEmpty(
		str(body, "buttonsResponseMessage", "selectedDisplayText"),
		str(body, "listResponseMessage", "title"),
		str(body, "listResponseMessage", "singleSelectReply", "selectedRowId"),
		str(body, "templateButtonReplyMessage", "selectedDisplayText"),
	); reply != "" {
		return reply, domainInbound.ContentInteractive, media
	}

	if loose := firstStr(m, "content", "text", "body"); loose != "" {
		if ct == "" {
			ct = domainInbound.ContentText
		}
		return loose, ct, media
	}

	if ct == "" || ct == domainInbound.ContentText {
		return "", ct, media
	}
	return Placeholder(ct), ct, media
}

// fillLooseMedia copies media fields that bridges put outside the message
// node, such as inline base64 or the url of an asynchronously downloaded file.
func fillLooseMedia(media *domainInbound.Media, sources ...map[string]any) {
	for _, src := range sources {
		if src == nil {
			continue
		}
		if media.URL == "" {
			media.URL = firstStr(src, "mediaUrl", "url", "fileUrl")
		}
		if media.Base64 == "" {
			media.Base64 = str(src, "base64")
		}
		if media.MimeType == "" {
			media.MimeType = firstStr(src, "mimetype", "mimeType")
		}
		if media.FileName == "" {
			media.FileName = firstStr(src, "fileName", "filename")
		}
	}
}

// typeFromMessageType maps the bridge's messageType hint. Unknown hints are
// reported as unsupported; protocol noise maps to no type at all.
func typeFromMessageType(t string) domainInbound.ContentType {
	switch strings.ToLower(t) {
	case "":
		return ""
	case "conversation", "extendedtextmessage", "text", "chat":
		return domainInbound.ContentText
	case "image", "imagemessage":
		return domainInbound.ContentImage
	case "video", "videomessage":
		return domainInbound.ContentVideo
	case "audio", "ptt", "audiomessage":
		return domainInbound.ContentAudio
	case "document", "documentmessage", "documentwithcaptionmessage":
		return domainInbound.ContentDocument
	case "sticker", "stickermessage":
		return domainInbound.ContentSticker
	case "location", "locationmessage", "livelocationmessage":
		return domainInbound.ContentLocation
	case "contact", "contactmessage", "contactsarraymessage", "vcard":
		return domainInbound.ContentContact
	case "buttonsresponsemessage", "listresponsemessage", "templatebuttonreplymessage":
		return domainInbound.ContentInteractive
	case "protocolmessage", "reactionmessage", "senderkeydistributionmessage", "messagecontextinfo", "pollupdatemessage":
		return ""
	default:
		return domainInbound.ContentUnsupported
	}
}

func isMediaType(ct domainInbound.ContentType) bool {
	switch ct {
	case domainInbound.ContentImage, domainInbound.ContentVideo, domainInbound.ContentAudio,
		domainInbound.ContentDocument, domainInbound.ContentSticker:
		return true
	}
	return false
}

func firstPresent(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
