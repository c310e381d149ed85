package middleware

import (
	"errors"
	"fmt"

	pkgError "github.com/AzielCF/az-relay/pkg/error"
	"github.com/AzielCF/az-relay/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// Recovery turns panics into the standard response envelope. Handlers rely on
// it through utils.PanicIfNeeded, so typed errors keep their status code even
// when wrapped.
func Recovery() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		defer func() {
			r := recover()
			if r == nil {
				return
			}

			res := utils.ResponseData{
				Status:  fiber.StatusInternalServerError,
				Code:    "INTERNAL_SERVER_ERROR",
				Message: fmt.Sprintf("%v", r),
			}

			var generic pkgError.GenericError
			if err, ok := r.(error); ok && errors.As(err, &generic) {
				res.Status = generic.StatusCode()
				res.Code = generic.ErrCode()
				res.Message = err.Error()
			}

			if res.Status >= fiber.StatusInternalServerError {
				logrus.WithField("path", ctx.Path()).Errorf("[REST] Panic recovered in middleware: %v", r)
			} else {
				logrus.WithFields(logrus.Fields{"path": ctx.Path(), "code": res.Code}).Debug("[REST] Request rejected")
			}

			_ = ctx.Status(res.Status).JSON(res)
		}()

		return ctx.Next()
	}
}
