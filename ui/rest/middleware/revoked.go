package middleware

import (
	domainSession "github.com/AzielCF/az-relay/domains/session"
	"github.com/AzielCF/az-relay/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

const SessionTokenHeader = "X-Session-Token"

// RejectRevoked refuses requests whose session token was revoked on any
// server. Requests without a token pass; so do requests made while the store
// is unreachable.
func RejectRevoked(blacklist domainSession.ITokenBlacklist) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Get(SessionTokenHeader)
		if token == "" || blacklist == nil {
			return c.Next()
		}

		revoked, err := blacklist.IsRevoked(c.UserContext(), token)
		if err != nil {
			logrus.WithError(err).Warn("[SESSION] Revoked-token store unavailable, allowing request")
			return c.Next()
		}
		if revoked {
			return c.Status(fiber.StatusUnauthorized).JSON(utils.ResponseData{
				Status:  fiber.StatusUnauthorized,
				Code:    "SESSION_REVOKED",
				Message: "session token has been revoked",
			})
		}
		return c.Next()
	}
}
