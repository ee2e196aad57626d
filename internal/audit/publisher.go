package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/jmehdipour/odoo-gateway/internal/config"
	"github.com/jmehdipour/odoo-gateway/internal/kafka"
	"github.com/jmehdipour/odoo-gateway/internal/metrics"
	"go.uber.org/zap"
)

// Publisher accepts events without blocking the caller.
type Publisher interface {
	Publish(ev Event)
	Close() error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(Event) {}
func (Nop) Close() error  { return nil }

// MessageWriter is the producing side of kafka.Producer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

const (
	defaultBuffer = 1024
	maxBatch      = 100
	writeTimeout  = 5 * time.Second
)

// KafkaPublisher queues events in memory and writes them in batches from one
// goroutine. When the queue is full new events are dropped.
type KafkaPublisher struct {
	w   MessageWriter
	log *zap.Logger

	mu     sync.RWMutex
	closed bool
	ch     chan Event
	done   chan struct{}
}

func NewKafkaPublisher(w MessageWriter, buffer int, log *zap.Logger) *KafkaPublisher {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	if log == nil {
		log = zap.NewNop()
	}
	p := &KafkaPublisher{
		w:    w,
		log:  log,
		ch:   make(chan Event, buffer),
		done: make(chan struct{}),
	}
	go p.run()
	return p
}

// NewPublisherFromConfig returns a KafkaPublisher when auditing is enabled and
// Nop otherwise.
func NewPublisherFromConfig(cfg config.AuditConfig, log *zap.Logger) Publisher {
	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		return Nop{}
	}
	prod := kafka.NewProducerFromConfig(kafka.Config{
		Brokers:      cfg.Brokers,
		Topic:        cfg.Topic,
		BatchTimeout: cfg.BatchTimeout,
	})
	return NewKafkaPublisher(prod, cfg.BufferSize, log)
}

func (p *KafkaPublisher) Publish(ev Event) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}
	select {
	case p.ch <- ev:
	default:
		metrics.AuditEventsTotal.WithLabelValues("dropped").Inc()
	}
}

// Close flushes queued events and closes the writer.
func (p *KafkaPublisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.ch)
	p.mu.Unlock()

	<-p.done
	return p.w.Close()
}

func (p *KafkaPublisher) run() {
	defer close(p.done)

	batch := make([]kafka.Message, 0, maxBatch)
	for ev := range p.ch {
		batch = append(batch[:0], p.encode(ev)...)
	drain:
		for len(batch) < maxBatch {
			select {
			case more, ok := <-p.ch:
				if !ok {
					break drain
				}
				batch = append(batch, p.encode(more)...)
			default:
				break drain
			}
		}
		p.write(batch)
	}
}

func (p *KafkaPublisher) encode(ev Event) []kafka.Message {
	b, err := json.Marshal(ev)
	if err != nil {
		p.log.Error("audit encode failed", zap.String("id", ev.ID), zap.Error(err))
		return nil
	}
	return []kafka.Message{{Key: []byte(ev.ClientIP), Value: b}}
}

func (p *KafkaPublisher) write(batch []kafka.Message) {
	if len(batch) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := p.w.WriteMessages(ctx, batch...); err != nil {
		metrics.AuditEventsTotal.WithLabelValues("failed").Add(float64(len(batch)))
		p.log.Warn("audit publish failed", zap.Int("events", len(batch)), zap.Error(err))
		return
	}
	metrics.AuditEventsTotal.WithLabelValues("published").Add(float64(len(batch)))
}
