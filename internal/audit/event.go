// Package audit records one event per completed HTTP request and ships it to
// Kafka. The stream is best effort: publishing never blocks or fails a request.
package audit

import (
	"time"

	"github.com/jmehdipour/odoo-gateway/internal/util"
)

type Event struct {
	ID        string    `json:"id"`
	Time      time.Time `json:"time"`
	RequestID string    `json:"request_id"`
	ClientIP  string    `json:"client_ip"`
	Method    string    `json:"method"`
	Path      string    `json:"path"`
	Status    int       `json:"status"`
	LatencyMS int64     `json:"latency_ms"`
	// Gate names the pipeline gate that answered the request, if any.
	Gate string `json:"gate,omitempty"`
}

// NewEvent stamps a fresh ULID and the current time.
func NewEvent() Event {
	return Event{ID: util.New(), Time: time.Now().UTC()}
}
