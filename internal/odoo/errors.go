package odoo

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthentication means the credentials were rejected or the login
	// handshake could not complete.
	ErrAuthentication = errors.New("odoo: authentication failed")
	// ErrNotFound means a read by id matched zero records.
	ErrNotFound = errors.New("odoo: record not found")
	// ErrUpstreamUnavailable covers transport faults: refused connections,
	// timeouts, non-2xx statuses, malformed bodies and an open breaker.
	ErrUpstreamUnavailable = errors.New("odoo: upstream unavailable")
	// ErrUpstream is a well-formed fault reported by the server.
	ErrUpstream = errors.New("odoo: upstream fault")
)

// accessDenied is the exception name Odoo reports for rejected credentials.
const accessDenied = "odoo.exceptions.AccessDenied"

// Fault is an error payload returned by the JSON-RPC endpoint. Message is kept
// for logs only and must not be echoed to API callers.
type Fault struct {
	Code    int
	Name    string
	Message string
}

func (f *Fault) Error() string {
	if f.Name != "" {
		return fmt.Sprintf("odoo fault %d (%s): %s", f.Code, f.Name, f.Message)
	}
	return fmt.Sprintf("odoo fault %d: %s", f.Code, f.Message)
}

// Is lets errors.Is(err, ErrUpstream) match any fault.
func (f *Fault) Is(target error) bool { return target == ErrUpstream }

// unavailable wraps a transport-level cause.
func unavailable(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUpstreamUnavailable, fmt.Sprintf(format, args...))
}
