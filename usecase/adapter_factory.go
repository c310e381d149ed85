package usecase

import (
	coreconfig "github.com/AzielCF/az-relay/core/config"
	domainChannel "github.com/AzielCF/az-relay/domains/channel"
	domainProvider "github.com/AzielCF/az-relay/domains/provider"
	"github.com/AzielCF/az-relay/infrastructure/provider/bridge"
	"github.com/AzielCF/az-relay/infrastructure/provider/official"
	pkgError "github.com/AzielCF/az-relay/pkg/error"
)

type adapterFactory struct {
	cfg *coreconfig.Config
}

// NewAdapterFactory builds send adapters from resolved credentials.
func NewAdapterFactory(cfg *coreconfig.Config) domainProvider.IAdapterFactory {
	return &adapterFactory{cfg: cfg}
}

func (f *adapterFactory) For(creds domainChannel.Credentials) (domainProvider.ISendAdapter, error) {
	switch creds.Provider {
	case domainChannel.ProviderOfficial:
		return official.NewClient(official.Options{
			GraphBaseURL:  f.cfg.Providers.Official.GraphBaseURL,
			APIVersion:    f.cfg.Providers.Official.APIVersion,
			PhoneNumberID: creds.PhoneNumberID,
			AccessToken:   creds.AccessToken,
			WabaID:        creds.WabaID,
			CountryCode:   f.cfg.Dispatch.CountryCode,
		}), nil
	case domainChannel.ProviderBridge:
		return bridge.NewClient(bridge.Options{
			ServerURL:      creds.ServerURL,
			InstanceName:   creds.InstanceName,
			InstanceToken:  creds.InstanceToken,
			ChannelType:    creds.ChannelType,
			CountryCode:    f.cfg.Dispatch.CountryCode,
			AppBaseURL:     f.cfg.App.BaseUrl,
			BasePath:       f.cfg.App.BasePath,
			StaticsDir:     f.cfg.Paths.Statics,
			InlineMaxBytes: f.cfg.Providers.Bridge.InlineMaxBytes,
			InlineMaxEdge:  f.cfg.Providers.Bridge.InlineMaxEdge,
		}), nil
	default:
		return nil, pkgError.UnsupportedOperationError("no send adapter for provider " + string(creds.Provider))
	}
}
