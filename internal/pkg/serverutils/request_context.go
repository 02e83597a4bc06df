package serverutils

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// RequestContextMiddleware gives every request a user context with an overall
// deadline that is also cancelled when base is done (server shutdown).
// fasthttp does not report client disconnects, so the deadline is what stops
// work for a caller that went away. A non-positive timeout only ties the
// request to base.
func RequestContextMiddleware(base context.Context, timeout time.Duration) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		var reqCtx context.Context
		var cancel context.CancelFunc
		if timeout > 0 {
			reqCtx, cancel = context.WithTimeout(ctx.UserContext(), timeout)
		} else {
			reqCtx, cancel = context.WithCancel(ctx.UserContext())
		}
		stop := context.AfterFunc(base, cancel)
		defer func() {
			stop()
			cancel()
		}()

		ctx.SetUserContext(reqCtx)
		return ctx.Next()
	}
}
