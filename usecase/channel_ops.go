package usecase

import (
	"context"
	"fmt"

	domainChannel "github.com/AzielCF/az-relay/domains/channel"
	domainProvider "github.com/AzielCF/az-relay/domains/provider"
	pkgError "github.com/AzielCF/az-relay/pkg/error"
	"github.com/sirupsen/logrus"
)

type serviceChannelOps struct {
	channels domainChannel.IChannelRepository
	resolver domainChannel.ICredentialResolver
	adapters domainProvider.IAdapterFactory
}

func NewChannelOpsService(channels domainChannel.IChannelRepository, resolver domainChannel.ICredentialResolver, adapters domainProvider.IAdapterFactory) domainProvider.IChannelOpsUsecase {
	return &serviceChannelOps{channels: channels, resolver: resolver, adapters: adapters}
}

func (s *serviceChannelOps) adapterFor(ctx context.Context, channelID string) (domainChannel.Credentials, domainProvider.ISendAdapter, error) {
	if channelID == "" {
		return domainChannel.Credentials{}, nil, pkgError.ValidationError("channel_id: cannot be blank.")
	}
	ch, err := s.channels.GetByID(ctx, channelID)
	if err != nil {
		return domainChannel.Credentials{}, nil, err
	}
	creds, err := s.resolver.Resolve(ch)
	if err != nil {
		return domainChannel.Credentials{}, nil, err
	}
	adapter, err := s.adapters.For(creds)
	if err != nil {
		return domainChannel.Credentials{}, nil, err
	}
	return creds, adapter, nil
}

func (s *serviceChannelOps) ListTemplates(ctx context.Context, channelID string) ([]domainProvider.Template, error) {
	creds, adapter, err := s.adapterFor(ctx, channelID)
	if err != nil {
		return nil, err
	}
	templates, err := adapter.ListTemplates(ctx, creds.WabaID)
	if err != nil {
		logrus.WithError(err).WithField("channel_id", channelID).Warn("[CHANNEL] Failed to list templates")
		return nil, err
	}
	return templates, nil
}

func (s *serviceChannelOps) GetMediaInfo(ctx context.Context, channelID, mediaID string) (domainProvider.MediaInfo, error) {
	if mediaID == "" {
		return domainProvider.MediaInfo{}, pkgError.ValidationError("media_id: cannot be blank.")
	}
	_, adapter, err := s.adapterFor(ctx, channelID)
	if err != nil {
		return domainProvider.MediaInfo{}, err
	}
	info, err := adapter.GetMediaInfo(ctx, mediaID)
	if err != nil {
		return domainProvider.MediaInfo{}, fmt.Errorf("media %s: %w", mediaID, err)
	}
	return info, nil
}
