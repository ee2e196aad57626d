package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

func listUsersHandler(client Odoo, logger *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		users, err := client.ListUsers(c.Request().Context())
		if err != nil {
			return upstreamError(c, logger, "list users", err)
		}
		return c.JSON(http.StatusOK, users)
	}
}
