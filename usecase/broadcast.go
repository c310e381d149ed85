package usecase

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	coreconfig "github.com/AzielCF/az-relay/core/config"
	domainBroadcast "github.com/AzielCF/az-relay/domains/broadcast"
	domainChannel "github.com/AzielCF/az-relay/domains/channel"
	domainCrm "github.com/AzielCF/az-relay/domains/crm"
	domainEvents "github.com/AzielCF/az-relay/domains/events"
	domainLedger "github.com/AzielCF/az-relay/domains/ledger"
	domainProvider "github.com/AzielCF/az-relay/domains/provider"
	pkgError "github.com/AzielCF/az-relay/pkg/error"
	"github.com/AzielCF/az-relay/validations"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const defaultTemplateLanguage = "pt_BR"

type delayWindow struct {
	min, max time.Duration
}

// Pacer picks the wait before each send after the first one.
type Pacer struct {
	windows   map[domainChannel.Provider]delayWindow
	jitterMax time.Duration
	int63n    func(n int64) int64
}

func NewPacer(cfg coreconfig.DispatchConfig) *Pacer {
	return &Pacer{
		windows: map[domainChannel.Provider]delayWindow{
			domainChannel.ProviderBridge:   {cfg.BridgeDelayMin, cfg.BridgeDelayMax},
			domainChannel.ProviderOfficial: {cfg.OfficialDelayMin, cfg.OfficialDelayMax},
		},
		jitterMax: cfg.ExtraJitterMax,
		int63n:    rand.Int63n,
	}
}

// Delay is uniform in the provider window plus up to jitterMax extra.
func (p *Pacer) Delay(provider domainChannel.Provider) time.Duration {
	w, ok := p.windows[provider]
	if !ok {
		w = p.windows[domainChannel.ProviderOfficial]
	}
	d := w.min
	if span := int64(w.max - w.min); span > 0 {
		d += time.Duration(p.int63n(span + 1))
	}
	if p.jitterMax > 0 {
		d += time.Duration(p.int63n(int64(p.jitterMax) + 1))
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// BroadcastDeps groups the collaborators of the dispatch loop. Recorder and
// Publisher are optional.
type BroadcastDeps struct {
	Channels   domainChannel.IChannelRepository
	Resolver   domainChannel.ICredentialResolver
	Recipients *RecipientResolver
	Adapters   domainProvider.IAdapterFactory
	Quotas     domainLedger.IDailyQuotaStore
	Campaigns  domainLedger.ICampaignLedger
	Recorder   domainCrm.IConversationRecorder
	Publisher  domainEvents.IPublisher
	Dispatch   coreconfig.DispatchConfig
}

type BroadcastOption func(*serviceBroadcast)

// WithSleeper replaces the wait between sends.
func WithSleeper(sleep func(ctx context.Context, d time.Duration)) BroadcastOption {
	return func(s *serviceBroadcast) { s.sleep = sleep }
}

func WithClock(now func() time.Time) BroadcastOption {
	return func(s *serviceBroadcast) { s.now = now }
}

type serviceBroadcast struct {
	deps  BroadcastDeps
	pacer *Pacer
	sleep func(ctx context.Context, d time.Duration)
	now   func() time.Time
}

func NewBroadcastService(deps BroadcastDeps, opts ...BroadcastOption) domainBroadcast.IBroadcastUsecase {
	s := &serviceBroadcast{
		deps:  deps,
		pacer: NewPacer(deps.Dispatch),
		sleep: sleepContext,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *serviceBroadcast) Send(ctx context.Context, request domainBroadcast.SendRequest) (domainBroadcast.SendResult, error) {
	var result domainBroadcast.SendResult

	ch, err := s.deps.Channels.GetByID(ctx, request.ChannelID)
	if err != nil {
		return result, err
	}
	if !ch.Enabled {
		return result, pkgError.ValidationError(fmt.Sprintf("channel %s is disabled", ch.ID))
	}

	creds, err := s.deps.Resolver.Resolve(ch)
	if err != nil {
		return result, err
	}

	if err := validations.ValidateSendBroadcast(ctx, creds.Provider, request); err != nil {
		return result, err
	}

	recipients, err := s.deps.Recipients.Resolve(ctx, ch.OrganizationID, request)
	if err != nil {
		return result, err
	}

	if creds.Provider == domainChannel.ProviderBridge {
		if err := s.checkQuota(ctx, ch, domainLedger.DayKey(s.now()), len(recipients)); err != nil {
			return result, err
		}
	}

	adapter, err := s.deps.Adapters.For(creds)
	if err != nil {
		return result, err
	}

	if request.CampaignName != "" {
		campaign := &domainLedger.Campaign{
			ID:        uuid.NewString(),
			ChannelID: ch.ID,
			Name:      request.CampaignName,
			CreatedAt: s.now().UTC(),
		}
		if err := s.deps.Campaigns.Create(ctx, campaign); err != nil {
			return result, fmt.Errorf("failed to create campaign %q: %w", request.CampaignName, err)
		}
		result.CampaignID = campaign.ID
	}

	logrus.WithFields(logrus.Fields{
		"channel_id":  ch.ID,
		"provider":    creds.Provider,
		"recipients":  len(recipients),
		"campaign_id": result.CampaignID,
	}).Info("[BROADCAST] Dispatch started")

	// a client disconnect must not cut the broadcast in half
	loopCtx := context.WithoutCancel(ctx)

	result.Errors = []string{}
	result.Outcomes = make([]domainBroadcast.Outcome, 0, len(recipients))
	for i, to := range recipients {
		if i > 0 {
			s.sleep(loopCtx, s.pacer.Delay(creds.Provider))
		}

		outcome := s.sendOne(loopCtx, adapter, creds.Provider, request, to)
		result.Outcomes = append(result.Outcomes, outcome)

		if !outcome.Success {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", to, outcome.Error))
			logrus.WithFields(logrus.Fields{"channel_id": ch.ID, "recipient": to}).Warnf("[BROADCAST] Send failed: %s", outcome.Error)
			continue
		}

		result.Sent++
		if creds.Provider == domainChannel.ProviderBridge {
			safely("quota", to, func() { s.chargeQuota(loopCtx, ch.ID) })
		}
		safely("record", to, func() { s.record(loopCtx, ch, creds.Provider, request, outcome) })
		safely("publish", to, func() {
			s.publish(loopCtx, domainEvents.TypeBroadcastProgress, ch.ID, map[string]any{
				"campaign_id": result.CampaignID,
				"recipient":   to,
				"index":       i + 1,
				"total":       len(recipients),
			})
		})
	}

	if result.CampaignID != "" && result.Sent > 0 {
		safely("campaign", result.CampaignID, func() {
			if err := s.deps.Campaigns.IncrementSent(loopCtx, result.CampaignID, int64(result.Sent)); err != nil {
				logrus.WithError(err).WithField("campaign_id", result.CampaignID).Error("[BROADCAST] Failed to update campaign sent count")
			}
		})
	}

	safely("publish", "", func() {
		s.publish(loopCtx, domainEvents.TypeBroadcastCompleted, ch.ID, map[string]any{
			"campaign_id": result.CampaignID,
			"sent":        result.Sent,
			"failed":      result.Failed,
		})
	})

	logrus.WithFields(logrus.Fields{
		"channel_id": ch.ID,
		"sent":       result.Sent,
		"failed":     result.Failed,
	}).Info("[BROADCAST] Dispatch finished")

	return result, nil
}

// chargeQuota counts one delivery against the day it happened on, so a
// broadcast running past midnight UTC charges the new day.
func (s *serviceBroadcast) chargeQuota(ctx context.Context, channelID string) {
	if _, err := s.deps.Quotas.Increment(ctx, channelID, domainLedger.DayKey(s.now()), 1); err != nil {
		logrus.WithError(err).WithField("channel_id", channelID).Error("[QUOTA] Failed to increment daily count")
	}
}

// safely runs a step that follows a delivery. The message already left, so a
// panic is logged and the loop moves on.
func safely(step, subject string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logrus.WithFields(logrus.Fields{"step": step, "subject": subject}).Errorf("[BROADCAST] Recovered panic: %v", r)
		}
	}()
	fn()
}

func (s *serviceBroadcast) Quota(ctx context.Context, channelID string) (domainBroadcast.QuotaStatus, error) {
	ch, err := s.deps.Channels.GetByID(ctx, channelID)
	if err != nil {
		return domainBroadcast.QuotaStatus{}, err
	}
	creds, err := s.deps.Resolver.Resolve(ch)
	if err != nil {
		return domainBroadcast.QuotaStatus{}, err
	}

	day := domainLedger.DayKey(s.now())
	count, err := s.deps.Quotas.Get(ctx, ch.ID, day)
	if err != nil {
		return domainBroadcast.QuotaStatus{}, fmt.Errorf("failed to read daily quota: %w", err)
	}

	status := domainBroadcast.QuotaStatus{ChannelID: ch.ID, Day: day, Count: count}
	if creds.Provider == domainChannel.ProviderBridge {
		status.Limit = s.dailyLimit(ch)
		status.Remaining = max(status.Limit-count, 0)
	}
	return status, nil
}

func (s *serviceBroadcast) dailyLimit(ch domainChannel.Channel) int64 {
	if ch.Config.DailyLimit > 0 {
		return int64(ch.Config.DailyLimit)
	}
	return int64(s.deps.Dispatch.BridgeDailyLimit)
}

// checkQuota rejects the whole broadcast when it does not fit in what is left
// of today's limit.
func (s *serviceBroadcast) checkQuota(ctx context.Context, ch domainChannel.Channel, day string, n int) error {
	limit := s.dailyLimit(ch)
	if limit <= 0 {
		return nil
	}

	count, err := s.deps.Quotas.Get(ctx, ch.ID, day)
	if err != nil {
		return fmt.Errorf("failed to read daily quota: %w", err)
	}

	if count >= limit {
		return pkgError.QuotaExceededError(fmt.Sprintf(
			"daily limit of %s messages reached for channel %s, try again tomorrow",
			humanize.Comma(limit), ch.Name,
		))
	}
	if count+int64(n) > limit {
		return pkgError.QuotaExceededError(fmt.Sprintf(
			"broadcast of %s recipients exceeds the remaining daily capacity of %s (limit %s, already sent %s)",
			humanize.Comma(int64(n)), humanize.Comma(limit-count), humanize.Comma(limit), humanize.Comma(count),
		))
	}
	return nil
}

// sendOne never panics and never returns an error; every failure ends up in
// the outcome.
func (s *serviceBroadcast) sendOne(ctx context.Context, adapter domainProvider.ISendAdapter, provider domainChannel.Provider, request domainBroadcast.SendRequest, to string) (outcome domainBroadcast.Outcome) {
	outcome.Recipient = to
	defer func() {
		if r := recover(); r != nil {
			outcome.Success = false
			outcome.Error = fmt.Sprintf("panic: %v", r)
			logrus.Errorf("[BROADCAST] Recovered panic sending to %s: %v", to, r)
		}
	}()

	receipt, err := s.deliver(ctx, adapter, provider, request, to)
	if err != nil {
		outcome.Error = err.Error()
		return outcome
	}
	outcome.Success = true
	outcome.ProviderMessageID = receipt.MessageID
	return outcome
}

func (s *serviceBroadcast) deliver(ctx context.Context, adapter domainProvider.ISendAdapter, provider domainChannel.Provider, request domainBroadcast.SendRequest, to string) (domainProvider.SendReceipt, error) {
	if provider == domainChannel.ProviderOfficial {
		lang := request.TemplateLanguage
		if lang == "" {
			lang = defaultTemplateLanguage
		}
		return adapter.SendTemplate(ctx, to, domainProvider.TemplateRef{
			Name:     request.TemplateName,
			Language: lang,
			Params:   request.TemplateParams,
		})
	}

	switch {
	case request.Interactive != nil:
		return adapter.SendInteractive(ctx, to, *request.Interactive)
	case request.Media != nil:
		media := *request.Media
		if media.Caption == "" {
			media.Caption = request.Message
		}
		return adapter.SendMedia(ctx, to, media)
	default:
		return adapter.SendText(ctx, to, request.Message)
	}
}

// record stores the outbound message on the contact's conversation. Failures
// are logged only; the message already left.
func (s *serviceBroadcast) record(ctx context.Context, ch domainChannel.Channel, provider domainChannel.Provider, request domainBroadcast.SendRequest, outcome domainBroadcast.Outcome) {
	if s.deps.Recorder == nil {
		return
	}

	conv, err := s.deps.Recorder.CreateOrGetConversation(ctx, ch.OrganizationID, ch.ID, domainCrm.Contact{Phone: outcome.Recipient})
	if err != nil {
		logrus.WithError(err).WithField("recipient", outcome.Recipient).Error("[BROADCAST] Failed to open conversation")
		return
	}

	msg := domainCrm.RecordedMessage{
		Direction:         domainCrm.DirectionOutbound,
		Content:           request.Message,
		ContentType:       "text",
		ProviderMessageID: outcome.ProviderMessageID,
		SentAt:            s.now().UTC(),
	}
	switch {
	case provider == domainChannel.ProviderOfficial:
		msg.ContentType = "template"
		msg.Content = "template:" + request.TemplateName
	case request.Interactive != nil:
		msg.ContentType = "interactive"
		msg.Content = request.Interactive.Body
	case request.Media != nil:
		msg.ContentType = string(request.Media.Kind)
		msg.MediaURL = request.Media.URL
	}

	if err := s.deps.Recorder.RecordMessage(ctx, conv.ID, msg); err != nil {
		logrus.WithError(err).WithField("conversation_id", conv.ID).Error("[BROADCAST] Failed to record outbound message")
	}
}

func (s *serviceBroadcast) publish(ctx context.Context, eventType, channelID string, data any) {
	if s.deps.Publisher == nil {
		return
	}
	evt := domainEvents.Event{
		Type:       eventType,
		ChannelID:  channelID,
		OccurredAt: s.now().UTC(),
		Data:       data,
	}
	if err := s.deps.Publisher.Publish(ctx, evt); err != nil {
		logrus.WithError(err).WithField("type", eventType).Warn("[BROADCAST] Failed to publish event")
	}
}
