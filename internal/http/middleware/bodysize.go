package middleware

import (
	"net/http"
	"strconv"
	"strings"

	echo "github.com/labstack/echo/v4"
)

// BodySize rejects requests whose declared Content-Length exceeds Max. Bodies
// without a declared length are not inspected.
type BodySize struct {
	Max int64
}

func NewBodySize(max int64) *BodySize { return &BodySize{Max: max} }

func (b *BodySize) Name() string { return "body_size" }

func (b *BodySize) Inspect(c echo.Context) *Rejection {
	req := c.Request()
	length := req.ContentLength
	if v := strings.TrimSpace(req.Header.Get(echo.HeaderContentLength)); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			return reject(http.StatusBadRequest, "Invalid Content-Length header")
		}
		length = n
	}
	if length > b.Max {
		return reject(http.StatusRequestEntityTooLarge, "Request body too large")
	}
	return nil
}
