package rest

import (
	domainProvider "github.com/AzielCF/az-relay/domains/provider"
	"github.com/AzielCF/az-relay/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type Channel struct {
	Service domainProvider.IChannelOpsUsecase
}

func InitRestChannel(app fiber.Router, service domainProvider.IChannelOpsUsecase) Channel {
	rest := Channel{Service: service}
	app.Get("/channels/:channel_id/templates", rest.ListTemplates)
	app.Get("/channels/:channel_id/media/:media_id", rest.GetMedia)
	return rest
}

func (handler *Channel) ListTemplates(c *fiber.Ctx) error {
	templates, err := handler.Service.ListTemplates(c.UserContext(), c.Params("channel_id"))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Templates retrieved",
		Results: templates,
	})
}

func (handler *Channel) GetMedia(c *fiber.Ctx) error {
	info, err := handler.Service.GetMediaInfo(c.UserContext(), c.Params("channel_id"), c.Params("media_id"))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Media retrieved",
		Results: info,
	})
}
