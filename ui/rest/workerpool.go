package rest

import (
	"github.com/AzielCF/az-relay/pkg/msgworker"
	"github.com/gofiber/fiber/v2"
)

func InitRestWorkerPool(app fiber.Router, pool *msgworker.MessageWorkerPool) {
	app.Get("/worker-pool/stats", func(c *fiber.Ctx) error {
		return GetWorkerPoolStats(c, pool)
	})
}

// GetWorkerPoolStats returns real-time statistics of the inbound worker pool.
func GetWorkerPoolStats(c *fiber.Ctx, pool *msgworker.MessageWorkerPool) error {
	if pool == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Inbound worker pool not initialized",
		})
	}
	return c.JSON(pool.GetStats())
}
