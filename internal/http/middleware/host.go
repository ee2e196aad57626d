package middleware

import (
	"net"
	"net/http"
	"strings"

	echo "github.com/labstack/echo/v4"
)

// HostFilter rejects requests whose Host header is missing or not allowed.
type HostFilter struct {
	exact    map[string]bool
	suffixes []string
}

// NewHostFilter accepts exact host names and "*.example.com" patterns. It
// returns nil when the list is empty or contains "*", meaning no filtering.
func NewHostFilter(allowed []string) *HostFilter {
	h := &HostFilter{exact: map[string]bool{}}
	for _, a := range allowed {
		a = strings.ToLower(strings.TrimSpace(a))
		switch {
		case a == "":
		case a == "*":
			return nil
		case strings.HasPrefix(a, "*."):
			h.suffixes = append(h.suffixes, a[1:])
		default:
			h.exact[a] = true
		}
	}
	if len(h.exact) == 0 && len(h.suffixes) == 0 {
		return nil
	}
	return h
}

func (h *HostFilter) Name() string { return "host" }

func (h *HostFilter) Inspect(c echo.Context) *Rejection {
	host := hostname(c.Request().Host)
	if host == "" || !h.allowed(host) {
		return reject(http.StatusBadRequest, "Invalid host header")
	}
	return nil
}

func (h *HostFilter) allowed(host string) bool {
	if h.exact[host] {
		return true
	}
	for _, s := range h.suffixes {
		if strings.HasSuffix(host, s) {
			return true
		}
	}
	return false
}

// hostname strips the port and IPv6 brackets and lowercases.
func hostname(hostport string) string {
	hostport = strings.TrimSpace(hostport)
	if host, _, err := net.SplitHostPort(hostport); err == nil {
		hostport = host
	}
	return strings.ToLower(strings.Trim(hostport, "[]"))
}
