package usecase

import (
	"context"
	"fmt"
	"time"

	domainChannel "github.com/AzielCF/az-relay/domains/channel"
	domainCrm "github.com/AzielCF/az-relay/domains/crm"
	domainEvents "github.com/AzielCF/az-relay/domains/events"
	domainInbound "github.com/AzielCF/az-relay/domains/inbound"
	domainProvider "github.com/AzielCF/az-relay/domains/provider"
	"github.com/sirupsen/logrus"
)

type InboundDeps struct {
	Channels  domainChannel.IChannelRepository
	Resolver  domainChannel.ICredentialResolver
	Adapters  domainProvider.IAdapterFactory
	Dedup     domainInbound.IDeduplicator
	Recorder  domainCrm.IConversationRecorder
	Publisher domainEvents.IPublisher
	Replies   domainCrm.IReplyGenerator // nil disables AI replies

	// VerifyToken is the process-wide Official webhook verify token.
	VerifyToken       string
	MediaLookupBudget time.Duration
}

type serviceInbound struct {
	deps InboundDeps
}

func NewInboundService(deps InboundDeps) domainInbound.IInboundUsecase {
	if deps.MediaLookupBudget <= 0 {
		deps.MediaLookupBudget = 5 * time.Second
	}
	return &serviceInbound{deps: deps}
}

func (s *serviceInbound) VerifyToken(ctx context.Context, token string) bool {
	if token == "" {
		return false
	}
	if s.deps.VerifyToken != "" && token == s.deps.VerifyToken {
		return true
	}
	channels, err := s.deps.Channels.ListEnabled(ctx)
	if err != nil {
		logrus.WithError(err).Error("[WEBHOOK] Failed to list channels for verify token")
		return false
	}
	for _, ch := range channels {
		if ch.Config.VerifyToken != "" && ch.Config.VerifyToken == token {
			return true
		}
	}
	return false
}

// Process runs everything after normalization for one inbound message.
func (s *serviceInbound) Process(ctx context.Context, provider domainChannel.Provider, msg domainInbound.Message) error {
	ch, creds, ok, err := s.matchChannel(ctx, provider, msg.ProviderInstanceID)
	if err != nil {
		return err
	}
	if !ok {
		logrus.WithFields(logrus.Fields{
			"provider": provider,
			"instance": msg.ProviderInstanceID,
		}).Warn("[INBOUND] No channel matches webhook instance, dropping message")
		return nil
	}

	log := logrus.WithFields(logrus.Fields{
		"channel_id": ch.ID,
		"from":       msg.From,
		"message_id": msg.ProviderMessageID,
	})

	if msg.ProviderMessageID != "" && s.deps.Dedup != nil {
		fresh, err := s.deps.Dedup.Claim(ctx, ch.ID, msg.ProviderMessageID)
		if err != nil {
			log.WithError(err).Warn("[INBOUND] Dedup store unavailable, processing anyway")
		} else if !fresh {
			log.Debug("[INBOUND] Duplicate delivery ignored")
			return nil
		}
	}

	var adapter domainProvider.ISendAdapter
	if s.deps.Adapters != nil {
		if adapter, err = s.deps.Adapters.For(creds); err != nil {
			log.WithError(err).Warn("[INBOUND] No adapter for channel")
		}
	}

	if provider == domainChannel.ProviderOfficial && adapter != nil {
		s.lookupMedia(ctx, adapter, &msg)
	}

	convID, recErr := s.record(ctx, ch, msg)
	if recErr != nil {
		log.WithError(recErr).Error("[INBOUND] Failed to record message")
	}

	s.publish(ctx, ch.ID, msg)

	if recErr != nil {
		return recErr
	}

	if ch.Config.AIEnabled && !msg.FromMe && !msg.IsGroup && s.deps.Replies != nil && adapter != nil {
		s.reply(ctx, ch, adapter, convID, msg)
	}
	return nil
}

// matchChannel finds the enabled channel whose resolved credentials carry the
// webhook's instance id. A webhook without an instance id matches only when
// exactly one channel uses that provider.
func (s *serviceInbound) matchChannel(ctx context.Context, provider domainChannel.Provider, instanceID string) (domainChannel.Channel, domainChannel.Credentials, bool, error) {
	channels, err := s.deps.Channels.ListEnabled(ctx)
	if err != nil {
		return domainChannel.Channel{}, domainChannel.Credentials{}, false, fmt.Errorf("failed to list channels: %w", err)
	}

	var (
		candidates []domainChannel.Channel
		candCreds  []domainChannel.Credentials
	)
	for _, ch := range channels {
		creds, err := s.deps.Resolver.Resolve(ch)
		if err != nil || creds.Provider != provider {
			continue
		}
		if instanceID != "" && creds.InstanceID() == instanceID {
			return ch, creds, true, nil
		}
		candidates = append(candidates, ch)
		candCreds = append(candCreds, creds)
	}

	if instanceID == "" && len(candidates) == 1 {
		return candidates[0], candCreds[0], true, nil
	}
	return domainChannel.Channel{}, domainChannel.Credentials{}, false, nil
}

// lookupMedia fills the download URL of Official media within the lookup budget.
func (s *serviceInbound) lookupMedia(ctx context.Context, adapter domainProvider.ISendAdapter, msg *domainInbound.Message) {
	if msg.Media == nil || msg.Media.MediaID == "" || msg.Media.URL != "" {
		return
	}
	lookupCtx, cancel := context.WithTimeout(ctx, s.deps.MediaLookupBudget)
	defer cancel()

	info, err := adapter.GetMediaInfo(lookupCtx, msg.Media.MediaID)
	if err != nil {
		logrus.WithError(err).WithField("media_id", msg.Media.MediaID).Warn("[INBOUND] Media lookup failed, keeping id only")
		return
	}
	msg.Media.URL = info.URL
	if msg.Media.MimeType == "" {
		msg.Media.MimeType = info.MimeType
	}
}

func (s *serviceInbound) record(ctx context.Context, ch domainChannel.Channel, msg domainInbound.Message) (string, error) {
	if s.deps.Recorder == nil {
		return "", nil
	}
	conv, err := s.deps.Recorder.CreateOrGetConversation(ctx, ch.OrganizationID, ch.ID, domainCrm.Contact{
		Phone:   msg.From,
		Name:    msg.ContactName,
		IsGroup: msg.IsGroup,
	})
	if err != nil {
		return "", err
	}

	direction := domainCrm.DirectionInbound
	if msg.FromMe {
		direction = domainCrm.DirectionOutbound
	}
	rec := domainCrm.RecordedMessage{
		Direction:         direction,
		Content:           msg.Text,
		ContentType:       string(msg.ContentType),
		ProviderMessageID: msg.ProviderMessageID,
		SentAt:            msg.Timestamp,
	}
	if msg.Media != nil {
		rec.MediaURL = msg.Media.URL
	}
	if rec.SentAt.IsZero() {
		rec.SentAt = time.Now().UTC()
	}
	if err := s.deps.Recorder.RecordMessage(ctx, conv.ID, rec); err != nil {
		return conv.ID, err
	}
	return conv.ID, nil
}

func (s *serviceInbound) publish(ctx context.Context, channelID string, msg domainInbound.Message) {
	if s.deps.Publisher == nil {
		return
	}
	err := s.deps.Publisher.Publish(ctx, domainEvents.Event{
		Type:       domainEvents.TypeInboundMessage,
		ChannelID:  channelID,
		OccurredAt: time.Now().UTC(),
		Data:       msg,
	})
	if err != nil {
		logrus.WithError(err).Warn("[INBOUND] Failed to publish event")
	}
}

func (s *serviceInbound) reply(ctx context.Context, ch domainChannel.Channel, adapter domainProvider.ISendAdapter, convID string, msg domainInbound.Message) {
	log := logrus.WithFields(logrus.Fields{"channel_id": ch.ID, "conversation_id": convID})

	text, err := s.deps.Replies.GenerateReply(ctx, convID, msg.Text)
	if err != nil {
		log.WithError(err).Warn("[INBOUND] Reply generation failed")
		return
	}
	if text == "" {
		return
	}

	receipt, err := adapter.SendText(ctx, msg.From, text)
	if err != nil {
		log.WithError(err).Error("[INBOUND] Failed to send generated reply")
		return
	}

	if s.deps.Recorder == nil {
		return
	}
	err = s.deps.Recorder.RecordMessage(ctx, convID, domainCrm.RecordedMessage{
		Direction:         domainCrm.DirectionOutbound,
		Content:           text,
		ContentType:       string(domainInbound.ContentText),
		ProviderMessageID: receipt.MessageID,
		SentAt:            time.Now().UTC(),
	})
	if err != nil {
		log.WithError(err).Warn("[INBOUND] Failed to record generated reply")
	}
}
