package http

import (
	"time"

	"github.com/jmehdipour/odoo-gateway/internal/audit"
	"github.com/jmehdipour/odoo-gateway/internal/http/middleware"
	"github.com/labstack/echo/v4"
)

// auditMiddleware publishes one event per request once the response is
// written. Errors are rendered here so the recorded status is final.
func auditMiddleware(pub audit.Publisher) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()
			ev := audit.NewEvent()
			ev.RequestID = res.Header().Get(echo.HeaderXRequestID)
			ev.ClientIP = c.RealIP()
			ev.Method = req.Method
			ev.Path = req.URL.Path
			ev.Status = res.Status
			ev.LatencyMS = time.Since(start).Milliseconds()
			ev.Gate, _ = c.Get(middleware.RejectedByKey).(string)
			pub.Publish(ev)

			return err
		}
	}
}
