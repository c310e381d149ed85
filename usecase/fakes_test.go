package usecase

import (
	"context"
	"fmt"
	"sync"

	domainBroadcast "github.com/AzielCF/az-relay/domains/broadcast"
	domainChannel "github.com/AzielCF/az-relay/domains/channel"
	domainCrm "github.com/AzielCF/az-relay/domains/crm"
	domainEvents "github.com/AzielCF/az-relay/domains/events"
	domainLedger "github.com/AzielCF/az-relay/domains/ledger"
	domainProvider "github.com/AzielCF/az-relay/domains/provider"
	pkgError "github.com/AzielCF/az-relay/pkg/error"
)

type fakeChannels struct {
	items map[string]domainChannel.Channel
}

func newFakeChannels(chs ...domainChannel.Channel) *fakeChannels {
	f := &fakeChannels{items: map[string]domainChannel.Channel{}}
	for _, ch := range chs {
		f.items[ch.ID] = ch
	}
	return f
}

func (f *fakeChannels) Create(ctx context.Context, ch *domainChannel.Channel) error {
	f.items[ch.ID] = *ch
	return nil
}

func (f *fakeChannels) Update(ctx context.Context, ch *domainChannel.Channel) error {
	f.items[ch.ID] = *ch
	return nil
}

func (f *fakeChannels) GetByID(ctx context.Context, id string) (domainChannel.Channel, error) {
	ch, ok := f.items[id]
	if !ok {
		return domainChannel.Channel{}, pkgError.NotFoundError("channel not found")
	}
	return ch, nil
}

func (f *fakeChannels) List(ctx context.Context, orgID string) ([]domainChannel.Channel, error) {
	var out []domainChannel.Channel
	for _, ch := range f.items {
		if ch.OrganizationID == orgID {
			out = append(out, ch)
		}
	}
	return out, nil
}

func (f *fakeChannels) ListEnabled(ctx context.Context) ([]domainChannel.Channel, error) {
	var out []domainChannel.Channel
	for _, ch := range f.items {
		if ch.Enabled {
			out = append(out, ch)
		}
	}
	return out, nil
}

type fakeQuota struct {
	mu     sync.Mutex
	counts map[string]int64
}

func newFakeQuota() *fakeQuota {
	return &fakeQuota{counts: map[string]int64{}}
}

func (f *fakeQuota) Get(ctx context.Context, channelID, day string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[channelID+"|"+day], nil
}

func (f *fakeQuota) Increment(ctx context.Context, channelID, day string, n int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[channelID+"|"+day] += n
	return f.counts[channelID+"|"+day], nil
}

type fakeCampaigns struct {
	created    []domainLedger.Campaign
	increments []int64
}

func (f *fakeCampaigns) Create(ctx context.Context, c *domainLedger.Campaign) error {
	f.created = append(f.created, *c)
	return nil
}

func (f *fakeCampaigns) IncrementSent(ctx context.Context, id string, n int64) error {
	f.increments = append(f.increments, n)
	return nil
}

func (f *fakeCampaigns) Get(ctx context.Context, id string) (domainLedger.Campaign, error) {
	for _, c := range f.created {
		if c.ID == id {
			return c, nil
		}
	}
	return domainLedger.Campaign{}, pkgError.NotFoundError("campaign not found")
}

type sentCall struct {
	Op       string
	To       string
	Text     string
	Media    domainBroadcast.MediaRef
	Template domainProvider.TemplateRef
}

type fakeAdapter struct {
	mu        sync.Mutex
	calls     []sentCall
	failFor   map[string]error
	panicFor  map[string]bool
	mediaInfo domainProvider.MediaInfo
	templates []domainProvider.Template
	wabaID    string
}

func (f *fakeAdapter) do(call sentCall) (domainProvider.SendReceipt, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	n := len(f.calls)
	f.mu.Unlock()

	if f.panicFor[call.To] {
		panic("adapter exploded")
	}
	if err := f.failFor[call.To]; err != nil {
		return domainProvider.SendReceipt{}, err
	}
	return domainProvider.SendReceipt{MessageID: fmt.Sprintf("msg-%d", n)}, nil
}

func (f *fakeAdapter) SendText(ctx context.Context, to, text string) (domainProvider.SendReceipt, error) {
	return f.do(sentCall{Op: "text", To: to, Text: text})
}

func (f *fakeAdapter) SendMedia(ctx context.Context, to string, media domainBroadcast.MediaRef) (domainProvider.SendReceipt, error) {
	return f.do(sentCall{Op: "media", To: to, Media: media})
}

func (f *fakeAdapter) SendTemplate(ctx context.Context, to string, tpl domainProvider.TemplateRef) (domainProvider.SendReceipt, error) {
	return f.do(sentCall{Op: "template", To: to, Template: tpl})
}

func (f *fakeAdapter) SendInteractive(ctx context.Context, to string, in domainBroadcast.InteractiveRef) (domainProvider.SendReceipt, error) {
	return f.do(sentCall{Op: "interactive", To: to, Text: in.Body})
}

func (f *fakeAdapter) ListTemplates(ctx context.Context, wabaID string) ([]domainProvider.Template, error) {
	f.wabaID = wabaID
	return f.templates, nil
}

func (f *fakeAdapter) GetMediaInfo(ctx context.Context, mediaID string) (domainProvider.MediaInfo, error) {
	if f.mediaInfo.URL == "" {
		return domainProvider.MediaInfo{}, pkgError.ProviderSendError("not found")
	}
	return f.mediaInfo, nil
}

func (f *fakeAdapter) Calls() []sentCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentCall(nil), f.calls...)
}

type fakeFactory struct {
	adapter domainProvider.ISendAdapter
	built   int
}

func (f *fakeFactory) For(creds domainChannel.Credentials) (domainProvider.ISendAdapter, error) {
	f.built++
	return f.adapter, nil
}

type fakeRecorder struct {
	mu       sync.Mutex
	contacts []domainCrm.Contact
	messages []domainCrm.RecordedMessage
	fail     error
	panics   bool
}

func (f *fakeRecorder) CreateOrGetConversation(ctx context.Context, orgID, channelID string, contact domainCrm.Contact) (domainCrm.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panics {
		panic("recorder exploded")
	}
	if f.fail != nil {
		return domainCrm.Conversation{}, f.fail
	}
	f.contacts = append(f.contacts, contact)
	return domainCrm.Conversation{ID: "conv-" + contact.Phone, OrganizationID: orgID, ChannelID: channelID, ContactPhone: contact.Phone}, nil
}

func (f *fakeRecorder) RecordMessage(ctx context.Context, conversationID string, msg domainCrm.RecordedMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, msg)
	return nil
}

type fakeLeads struct {
	leads []domainCrm.Lead
}

func (f *fakeLeads) FindLeadsByStatus(ctx context.Context, orgID string, statuses []string) ([]domainCrm.Lead, error) {
	want := map[string]bool{}
	for _, s := range statuses {
		want[s] = true
	}
	var out []domainCrm.Lead
	for _, l := range f.leads {
		if l.OrganizationID == orgID && want[l.Status] {
			out = append(out, l)
		}
	}
	return out, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []domainEvents.Event
}

func (f *fakePublisher) Publish(ctx context.Context, evt domainEvents.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, evt)
	return nil
}

func (f *fakePublisher) Types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.Type)
	}
	return out
}

type fakeReplies struct {
	reply string
	got   []string
}

func (f *fakeReplies) GenerateReply(ctx context.Context, conversationID, lastMessage string) (string, error) {
	f.got = append(f.got, lastMessage)
	return f.reply, nil
}

type fakeDedup struct {
	seen map[string]bool
}

func (f *fakeDedup) Claim(ctx context.Context, channelID, id string) (bool, error) {
	if f.seen == nil {
		f.seen = map[string]bool{}
	}
	key := channelID + "|" + id
	if f.seen[key] {
		return false, nil
	}
	f.seen[key] = true
	return true, nil
}
