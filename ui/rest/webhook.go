package rest

import (
	"context"
	"fmt"

	domainChannel "github.com/AzielCF/az-relay/domains/channel"
	domainInbound "github.com/AzielCF/az-relay/domains/inbound"
	"github.com/AzielCF/az-relay/infrastructure/normalizer"
	pkgError "github.com/AzielCF/az-relay/pkg/error"
	"github.com/AzielCF/az-relay/pkg/msgworker"
	"github.com/AzielCF/az-relay/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// Webhook receives provider callbacks. Normalization happens on the request;
// everything after it runs on the worker pool so providers get a fast 200.
type Webhook struct {
	Service   domainInbound.IInboundUsecase
	Pool      *msgworker.MessageWorkerPool
	AppSecret string
}

func InitRestWebhook(app fiber.Router, service domainInbound.IInboundUsecase, pool *msgworker.MessageWorkerPool, appSecret string) Webhook {
	rest := Webhook{Service: service, Pool: pool, AppSecret: appSecret}
	app.Get("/webhooks/official", rest.VerifyOfficial)
	app.Post("/webhooks/official", rest.ReceiveOfficial)
	app.Post("/webhooks/bridge", rest.ReceiveBridge)
	app.Post("/webhooks/bridge/:instance", rest.ReceiveBridge)
	return rest
}

func (handler *Webhook) VerifyOfficial(c *fiber.Ctx) error {
	if c.Query("hub.mode") != "subscribe" || !handler.Service.VerifyToken(c.UserContext(), c.Query("hub.verify_token")) {
		logrus.WithField("ip", c.IP()).Warn("[WEBHOOK] Official verification rejected")
		return c.Status(fiber.StatusForbidden).JSON(utils.ResponseData{
			Status:  fiber.StatusForbidden,
			Code:    "FORBIDDEN",
			Message: "verification token mismatch",
		})
	}
	return c.Status(fiber.StatusOK).SendString(c.Query("hub.challenge"))
}

func (handler *Webhook) ReceiveOfficial(c *fiber.Ctx) error {
	body := c.Body()
	if handler.AppSecret != "" && !utils.VerifyHubSignature(body, c.Get("X-Hub-Signature-256"), handler.AppSecret) {
		logrus.WithField("ip", c.IP()).Warn("[WEBHOOK] Official signature mismatch")
		return c.Status(fiber.StatusUnauthorized).JSON(utils.ResponseData{
			Status:  fiber.StatusUnauthorized,
			Code:    "INVALID_SIGNATURE",
			Message: "invalid webhook signature",
		})
	}

	msg, err := normalizer.NormalizeOfficial(body)
	if err != nil {
		unreadable(domainChannel.ProviderOfficial, err)
	}
	handler.dispatch(domainChannel.ProviderOfficial, msg)
	return handler.ack(c)
}

func (handler *Webhook) ReceiveBridge(c *fiber.Ctx) error {
	msg, err := normalizer.NormalizeBridge(c.Body())
	if err != nil {
		unreadable(domainChannel.ProviderBridge, err)
	}
	if msg != nil && msg.ProviderInstanceID == "" {
		msg.ProviderInstanceID = c.Params("instance")
	}
	handler.dispatch(domainChannel.ProviderBridge, msg)
	return handler.ack(c)
}

// unreadable logs a body the normalizer rejected. The provider still gets a
// 200, a retry would carry the same body.
func unreadable(provider domainChannel.Provider, err error) {
	werr := pkgError.WebhookError(fmt.Sprintf("unreadable %s payload: %v", provider, err))
	logrus.WithError(werr).WithField("code", werr.ErrCode()).Warn("[WEBHOOK] Payload dropped")
}

func (handler *Webhook) ack(c *fiber.Ctx) error {
	return c.JSON(utils.ResponseData{Status: 200, Code: "SUCCESS", Message: "received"})
}

func (handler *Webhook) dispatch(provider domainChannel.Provider, msg *domainInbound.Message) {
	if msg == nil {
		return
	}
	message := *msg
	run := func(ctx context.Context) error {
		return handler.Service.Process(ctx, provider, message)
	}

	if handler.Pool == nil {
		if err := run(context.Background()); err != nil {
			logrus.WithError(err).Error("[WEBHOOK] Inbound processing failed")
		}
		return
	}

	accepted := handler.Pool.TryDispatch(msgworker.MessageJob{
		ChannelKey: string(provider) + ":" + message.ProviderInstanceID,
		ChatKey:    message.From,
		Handler:    run,
	})
	if !accepted {
		logrus.WithFields(logrus.Fields{
			"provider":   provider,
			"instance":   message.ProviderInstanceID,
			"message_id": message.ProviderMessageID,
		}).Warn("[WEBHOOK] Worker pool saturated, inbound message dropped")
	}
}
