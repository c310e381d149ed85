package usecase

import (
	"fmt"
	"strings"

	coreconfig "github.com/AzielCF/az-relay/core/config"
	domainChannel "github.com/AzielCF/az-relay/domains/channel"
	pkgError "github.com/AzielCF/az-relay/pkg/error"
	"github.com/sirupsen/logrus"
)

// CredentialResolver turns a channel record into the credentials of exactly one
// provider. Field priority is explicit config, then the legacy channel fields,
// then the process-wide provider settings.
type CredentialResolver struct {
	fallback coreconfig.ProvidersConfig
}

func NewCredentialResolver(fallback coreconfig.ProvidersConfig) *CredentialResolver {
	return &CredentialResolver{fallback: fallback}
}

func (r *CredentialResolver) Resolve(ch domainChannel.Channel) (domainChannel.Credentials, error) {
	provider := r.decideProvider(ch)

	creds := domainChannel.Credentials{
		Provider:    provider,
		ChannelType: ch.Type,
	}
	if creds.ChannelType == "" {
		creds.ChannelType = domainChannel.ChannelTypeWhatsApp
	}

	var missing []string
	switch provider {
	case domainChannel.ProviderOfficial:
		creds.PhoneNumberID = firstNonEmpty(ch.Config.PhoneNumberID, ch.ExternalRef, r.fallback.Official.PhoneNumberID)
		creds.AccessToken = firstNonEmpty(ch.Config.AccessToken, ch.AccessToken, r.fallback.Official.AccessToken)
		creds.WabaID = firstNonEmpty(ch.Config.WabaID, r.fallback.Official.WabaID)
		if creds.PhoneNumberID == "" {
			missing = append(missing, "phone_number_id")
		}
		if creds.AccessToken == "" {
			missing = append(missing, "access_token")
		}
	default:
		creds.InstanceToken = firstNonEmpty(ch.Config.InstanceToken, ch.AccessToken, r.fallback.Bridge.APIKey)
		creds.ServerURL = strings.TrimRight(firstNonEmpty(ch.Config.ServerURL, r.fallback.Bridge.ServerURL), "/")
		creds.InstanceName = firstNonEmpty(ch.Config.InstanceName, ch.ExternalRef, ch.ID)
		if creds.InstanceToken == "" {
			missing = append(missing, "instance_token")
		}
		if creds.ServerURL == "" {
			missing = append(missing, "server_url")
		}
	}

	if len(missing) > 0 {
		return creds, pkgError.CredentialsMissingError(fmt.Sprintf("channel %s (%s) is missing %s", ch.ID, provider, strings.Join(missing, ", ")))
	}
	return creds, nil
}

func (r *CredentialResolver) decideProvider(ch domainChannel.Channel) domainChannel.Provider {
	if ch.Type != "" && ch.Type != domainChannel.ChannelTypeWhatsApp {
		return domainChannel.ProviderBridge
	}
	if ch.Provider.Valid() {
		return ch.Provider
	}

	hasBridge := ch.Config.InstanceToken != "" || ch.Config.InstanceName != ""
	hasOfficial := ch.Config.PhoneNumberID != "" || ch.Config.AccessToken != ""
	inferred := domainChannel.ProviderOfficial
	if hasBridge && !hasOfficial {
		inferred = domainChannel.ProviderBridge
	}

	logrus.WithFields(logrus.Fields{
		"channel_id": ch.ID,
		"inferred":   inferred,
	}).Warn("[CREDENTIALS] Channel has no provider tag, inferring from config (deprecated, set channel.provider)")
	return inferred
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
