package rest

import (
	"strings"
	"time"

	domainSession "github.com/AzielCF/az-relay/domains/session"
	pkgError "github.com/AzielCF/az-relay/pkg/error"
	"github.com/AzielCF/az-relay/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type Session struct {
	Blacklist domainSession.ITokenBlacklist
	TTL       time.Duration
}

func InitRestSession(app fiber.Router, blacklist domainSession.ITokenBlacklist, ttl time.Duration) Session {
	rest := Session{Blacklist: blacklist, TTL: ttl}
	app.Post("/sessions/revoke", rest.Revoke)
	return rest
}

func (handler *Session) Revoke(c *fiber.Ctx) error {
	var request domainSession.RevokeRequest
	if err := c.BodyParser(&request); err != nil {
		utils.PanicIfNeeded(pkgError.ValidationError("invalid request body: " + err.Error()))
	}
	request.Token = strings.TrimSpace(request.Token)
	if request.Token == "" {
		utils.PanicIfNeeded(pkgError.ValidationError("token: cannot be blank."))
	}

	utils.PanicIfNeeded(handler.Blacklist.Revoke(c.UserContext(), request.Token, handler.TTL))
	logrus.Info("[SESSION] Token revoked")

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Session revoked",
	})
}
