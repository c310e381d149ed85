package rest

import (
	"context"
	"time"

	"github.com/AzielCF/az-relay/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

// HealthCheck probes one dependency. A nil error means healthy.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type Health struct {
	Checks []HealthCheck
}

func InitRestHealth(app fiber.Router, checks ...HealthCheck) Health {
	handler := Health{Checks: checks}
	app.Get("/health", handler.GetStatus)
	return handler
}

func (h *Health) GetStatus(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 3*time.Second)
	defer cancel()

	statuses := make(map[string]string, len(h.Checks))
	healthy := true
	for _, check := range h.Checks {
		if err := check.Check(ctx); err != nil {
			statuses[check.Name] = err.Error()
			healthy = false
			continue
		}
		statuses[check.Name] = "ok"
	}

	if !healthy {
		return c.Status(fiber.StatusServiceUnavailable).JSON(utils.ResponseData{
			Status:  fiber.StatusServiceUnavailable,
			Code:    "UNHEALTHY",
			Message: "One or more dependencies are unavailable",
			Results: statuses,
		})
	}
	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Health status retrieved",
		Results: statuses,
	})
}
