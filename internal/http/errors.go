package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jmehdipour/odoo-gateway/internal/odoo"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// upstreamError turns a client error into an HTTP error with a generic
// message. The cause is logged, never returned to the caller.
func upstreamError(c echo.Context, logger *zap.Logger, op string, err error) error {
	var (
		status int
		detail string
	)
	switch {
	case errors.Is(err, odoo.ErrAuthentication):
		status, detail = http.StatusInternalServerError, "Upstream authentication failed"
	case errors.Is(err, odoo.ErrUpstreamUnavailable):
		status, detail = http.StatusServiceUnavailable, "Upstream service unavailable"
	default:
		status, detail = http.StatusBadGateway, "Upstream service error"
	}
	logger.Error(op+" failed",
		zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
		zap.Int("status", status),
		zap.Error(err),
	)
	return echo.NewHTTPError(status, detail)
}

// errorHandler renders every error as {"detail": ...}.
func errorHandler(logger *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		detail := http.StatusText(status)
		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
			if m, ok := he.Message.(string); ok {
				detail = m
			} else {
				detail = fmt.Sprint(he.Message)
			}
		} else {
			logger.Error("unhandled error", zap.String("path", c.Request().URL.Path), zap.Error(err))
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		_ = c.JSON(status, map[string]string{"detail": detail})
	}
}
