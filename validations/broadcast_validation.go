package validations

import (
	"context"

	domainBroadcast "github.com/AzielCF/az-relay/domains/broadcast"
	domainChannel "github.com/AzielCF/az-relay/domains/channel"
	pkgError "github.com/AzielCF/az-relay/pkg/error"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// ValidateSendBroadcast checks the request against what the resolved provider
// can deliver. It runs before any quota read or provider call.
func ValidateSendBroadcast(ctx context.Context, provider domainChannel.Provider, request domainBroadcast.SendRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.ChannelID, validation.Required),
		validation.Field(&request.Numbers,
			validation.When(len(request.Statuses) == 0, validation.Required.Error("provide numbers or lead statuses")),
		),
		validation.Field(&request.TemplateName,
			validation.When(provider == domainChannel.ProviderOfficial,
				validation.Required.Error("is required for official channels, free text can only be sent inside an open conversation window"),
			),
		),
		validation.Field(&request.Message,
			validation.When(provider == domainChannel.ProviderBridge && request.Media == nil && request.Interactive == nil,
				validation.Required.Error("provide a message, media or interactive content"),
			),
		),
	)
	if err != nil {
		return pkgError.ValidationError(err.Error())
	}

	if provider != domainChannel.ProviderBridge {
		return nil
	}

	if media := request.Media; media != nil {
		err := validation.ValidateStructWithContext(ctx, media,
			validation.Field(&media.URL, validation.Required),
			validation.Field(&media.Kind, validation.Required, validation.In(
				domainBroadcast.MediaImage,
				domainBroadcast.MediaVideo,
				domainBroadcast.MediaAudio,
				domainBroadcast.MediaDocument,
			)),
		)
		if err != nil {
			return pkgError.ValidationError("media: " + err.Error())
		}
	}

	if in := request.Interactive; in != nil {
		err := validation.ValidateStructWithContext(ctx, in,
			validation.Field(&in.Type, validation.Required, validation.In(
				domainBroadcast.InteractiveButton,
				domainBroadcast.InteractiveList,
			)),
			validation.Field(&in.Body, validation.Required),
			validation.Field(&in.ButtonText, validation.When(in.Type == domainBroadcast.InteractiveList, validation.Required)),
			validation.Field(&in.Choices, validation.Required),
		)
		if err != nil {
			return pkgError.ValidationError("interactive: " + err.Error())
		}
	}

	return nil
}
