package middleware

import (
	"net/http"

	echo "github.com/labstack/echo/v4"
)

var securityHeaders = [][2]string{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"Referrer-Policy", "no-referrer"},
	{"Permissions-Policy", "geolocation=(), microphone=(), camera=()"},
	{"Strict-Transport-Security", "max-age=31536000; includeSubDomains"},
}

// SecurityHeaders adds the hardening headers to every response. A header
// already set by a handler is left alone.
type SecurityHeaders struct{}

func NewSecurityHeaders() *SecurityHeaders { return &SecurityHeaders{} }

func (*SecurityHeaders) Name() string { return "security_headers" }

func (*SecurityHeaders) Inspect(echo.Context) *Rejection { return nil }

func (*SecurityHeaders) Annotate(_ *http.Request, h http.Header) {
	for _, kv := range securityHeaders {
		if h.Get(kv[0]) == "" {
			h.Set(kv[0], kv[1])
		}
	}
}
