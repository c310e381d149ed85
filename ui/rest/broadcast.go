package rest

import (
	"fmt"

	domainBroadcast "github.com/AzielCF/az-relay/domains/broadcast"
	pkgError "github.com/AzielCF/az-relay/pkg/error"
	"github.com/AzielCF/az-relay/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type Broadcast struct {
	Service domainBroadcast.IBroadcastUsecase
}

func InitRestBroadcast(app fiber.Router, service domainBroadcast.IBroadcastUsecase) Broadcast {
	rest := Broadcast{Service: service}
	app.Post("/broadcasts", rest.Send)
	app.Get("/channels/:channel_id/quota", rest.Quota)
	return rest
}

// Send runs the broadcast to completion. Per-recipient failures are reported
// in the results; only request-level errors change the status code.
func (handler *Broadcast) Send(c *fiber.Ctx) error {
	var request domainBroadcast.SendRequest
	if err := c.BodyParser(&request); err != nil {
		utils.PanicIfNeeded(pkgError.ValidationError("invalid request body: " + err.Error()))
	}

	result, err := handler.Service.Send(c.UserContext(), request)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: fmt.Sprintf("Broadcast finished: %d sent, %d failed", result.Sent, result.Failed),
		Results: result,
	})
}

func (handler *Broadcast) Quota(c *fiber.Ctx) error {
	status, err := handler.Service.Quota(c.UserContext(), c.Params("channel_id"))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Quota retrieved",
		Results: status,
	})
}
