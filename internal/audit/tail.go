package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmehdipour/odoo-gateway/internal/kafka"
	"github.com/jmehdipour/odoo-gateway/internal/metrics"
	"go.uber.org/zap"
)

// Source is the consuming side of kafka.Consumer.
type Source interface {
	Fetch(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, m kafka.Message) error
}

// Tailer reads audit events from a consumer group and hands each one to
// Handle. Messages are committed after handling; undecodable ones are
// committed and skipped.
type Tailer struct {
	Source Source
	Handle func(Event)
	Log    *zap.Logger

	// RetryWait is the pause after a failed fetch.
	RetryWait time.Duration
}

func NewTailer(src Source, log *zap.Logger) *Tailer {
	if log == nil {
		log = zap.NewNop()
	}
	t := &Tailer{Source: src, Log: log, RetryWait: 200 * time.Millisecond}
	t.Handle = t.logEvent
	return t
}

// Run blocks until ctx is cancelled.
func (t *Tailer) Run(ctx context.Context) error {
	for {
		m, err := t.Source.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			t.Log.Warn("audit fetch failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(t.RetryWait):
			}
			continue
		}

		var ev Event
		if err := json.Unmarshal(m.Value, &ev); err != nil || ev.ID == "" {
			metrics.AuditEventsTotal.WithLabelValues("invalid").Inc()
			t.Log.Warn("audit event skipped", zap.Int64("offset", m.Offset), zap.Int("partition", m.Partition), zap.Error(err))
		} else {
			metrics.AuditEventsTotal.WithLabelValues("consumed").Inc()
			t.Handle(ev)
		}

		if err := t.Source.Commit(ctx, m); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			t.Log.Warn("audit commit failed", zap.Int64("offset", m.Offset), zap.Error(err))
		}
	}
}

func (t *Tailer) logEvent(ev Event) {
	t.Log.Info("audit",
		zap.String("id", ev.ID),
		zap.Time("time", ev.Time),
		zap.String("request_id", ev.RequestID),
		zap.String("client_ip", ev.ClientIP),
		zap.String("method", ev.Method),
		zap.String("path", ev.Path),
		zap.Int("status", ev.Status),
		zap.Int64("latency_ms", ev.LatencyMS),
		zap.String("gate", ev.Gate),
	)
}
