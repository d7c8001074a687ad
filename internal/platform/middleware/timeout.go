package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// RequestTimeout puts a deadline on the request context and runs the handler
// on the request goroutine. Store calls observe the deadline; an error that
// unwraps to context.DeadlineExceeded is answered with a 504 ErrorBody. A
// non-positive timeout disables the middleware.
func RequestTimeout(timeout time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if timeout <= 0 {
			return next
		}
		return func(c echo.Context) error {
			ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
			defer cancel()
			c.SetRequest(c.Request().WithContext(ctx))

			err := next(c)
			if err != nil && errors.Is(err, context.DeadlineExceeded) {
				return gatewayTimeout(c)
			}
			return err
		}
	}
}

func gatewayTimeout(c echo.Context) error {
	if c.Response().Committed {
		return nil
	}
	rid, _ := c.Get("request_id").(string)
	return c.JSON(http.StatusGatewayTimeout, ErrorBody{
		Error:     "request processing exceeded the allowed time limit",
		RequestID: rid,
	})
}
