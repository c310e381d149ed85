package rest

import (
	"github.com/AzielCF/az-relay/pkg/relaymonitor"
	"github.com/AzielCF/az-relay/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type Monitoring struct {
	Monitor *relaymonitor.Monitor
}

func InitRestMonitoring(app fiber.Router, monitor *relaymonitor.Monitor) Monitoring {
	rest := Monitoring{Monitor: monitor}
	app.Get("/monitor/stats", rest.GetStats)
	return rest
}

// GetStats reports this server's activity since start.
func (handler *Monitoring) GetStats(c *fiber.Ctx) error {
	if handler.Monitor == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Activity monitor not initialized",
		})
	}
	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Activity retrieved",
		Results: handler.Monitor.GetStats(),
	})
}
