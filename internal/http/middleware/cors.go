package middleware

import (
	"net/http"
	"strings"

	echo "github.com/labstack/echo/v4"
)

const (
	corsAllowMethods = "GET, HEAD, OPTIONS"
	corsMaxAge       = "600"
)

// CORS answers preflight requests and marks actual responses for allowed
// origins. Origins are "*", exact values or wildcard host patterns such as
// "https://*.example.com"; a pattern without a scheme matches any scheme.
type CORS struct {
	any      bool
	exact    map[string]bool
	wildcard []originPattern
}

type originPattern struct {
	scheme string // empty matches any scheme
	suffix string // ".example.com"
}

func NewCORS(origins []string) *CORS {
	c := &CORS{exact: map[string]bool{}}
	for _, o := range origins {
		o = strings.ToLower(strings.TrimRight(strings.TrimSpace(o), "/"))
		scheme, host := "", o
		if i := strings.Index(o, "://"); i >= 0 {
			scheme, host = o[:i], o[i+3:]
		}
		switch {
		case o == "":
		case o == "*":
			c.any = true
		case strings.HasPrefix(host, "*."):
			c.wildcard = append(c.wildcard, originPattern{scheme: scheme, suffix: host[1:]})
		default:
			c.exact[o] = true
		}
	}
	return c
}

func (c *CORS) Name() string { return "cors" }

func (c *CORS) allowed(origin string) bool {
	if origin == "" {
		return false
	}
	if c.any {
		return true
	}
	origin = strings.ToLower(origin)
	if c.exact[origin] {
		return true
	}
	scheme, host := "", origin
	if i := strings.Index(origin, "://"); i >= 0 {
		scheme, host = origin[:i], origin[i+3:]
	}
	for _, p := range c.wildcard {
		if p.scheme != "" && p.scheme != scheme {
			continue
		}
		if strings.HasSuffix(hostname(host), p.suffix) {
			return true
		}
	}
	return false
}

func isPreflight(r *http.Request) bool {
	return r.Method == http.MethodOptions &&
		r.Header.Get(echo.HeaderOrigin) != "" &&
		r.Header.Get(echo.HeaderAccessControlRequestMethod) != ""
}

func (c *CORS) Inspect(ctx echo.Context) *Rejection {
	req := ctx.Request()
	if !isPreflight(req) {
		return nil
	}
	if !c.allowed(req.Header.Get(echo.HeaderOrigin)) {
		return reject(http.StatusBadRequest, "Disallowed CORS origin")
	}

	h := http.Header{}
	h.Set(echo.HeaderAccessControlAllowMethods, corsAllowMethods)
	if rh := req.Header.Get(echo.HeaderAccessControlRequestHeaders); rh != "" {
		h.Set(echo.HeaderAccessControlAllowHeaders, rh)
	}
	h.Set(echo.HeaderAccessControlMaxAge, corsMaxAge)
	return &Rejection{Status: http.StatusOK, Header: h}
}

// Annotate sets the allow-origin headers on every response to an allowed
// origin, preflight included.
func (c *CORS) Annotate(req *http.Request, h http.Header) {
	origin := req.Header.Get(echo.HeaderOrigin)
	if !c.allowed(origin) {
		return
	}
	h.Set(echo.HeaderAccessControlAllowOrigin, origin)
	h.Add(echo.HeaderVary, echo.HeaderOrigin)
}
