package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/jmehdipour/odoo-gateway/internal/odoo"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

func listContactsHandler(client Odoo, logger *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		contacts, err := client.ListContacts(c.Request().Context())
		if err != nil {
			return upstreamError(c, logger, "list contacts", err)
		}
		return c.JSON(http.StatusOK, contacts)
	}
}

func getContactHandler(client Odoo, logger *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil || id <= 0 {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, "Contact ID must be a positive integer")
		}

		contact, err := client.GetContact(c.Request().Context(), id)
		if errors.Is(err, odoo.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("Contact with ID %d not found", id))
		}
		if err != nil {
			return upstreamError(c, logger, "get contact", err)
		}
		return c.JSON(http.StatusOK, contact)
	}
}
