package audit

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jmehdipour/odoo-gateway/internal/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	failFirst bool
	committed []int64
}

func (s *fakeSource) Fetch(ctx context.Context) (kafka.Message, error) {
	s.mu.Lock()
	if s.failFirst {
		s.failFirst = false
		s.mu.Unlock()
		return kafka.Message{}, errors.New("coordinator not available")
	}
	if len(s.msgs) > 0 {
		m := s.msgs[0]
		s.msgs = s.msgs[1:]
		s.mu.Unlock()
		return m, nil
	}
	s.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (s *fakeSource) Commit(_ context.Context, m kafka.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.committed = append(s.committed, m.Offset)
	return nil
}

func (s *fakeSource) commits() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.committed...)
}

func encoded(t *testing.T, ev Event, offset int64) kafka.Message {
	t.Helper()
	b, err := json.Marshal(ev)
	require.NoError(t, err)
	return kafka.Message{Value: b, Offset: offset}
}

func TestTailer_Run(t *testing.T) {
	first := NewEvent()
	first.Path = "/contacts"
	second := NewEvent()
	second.Path = "/users"
	second.Gate = "rate_limit"

	src := &fakeSource{
		failFirst: true,
		msgs: []kafka.Message{
			encoded(t, first, 1),
			{Value: []byte("not json"), Offset: 2},
			encoded(t, Event{Path: "/no-id"}, 3),
			encoded(t, second, 4),
		},
	}

	var (
		mu  sync.Mutex
		got []Event
	)
	tl := NewTailer(src, nil)
	tl.RetryWait = time.Millisecond
	tl.Handle = func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, ev)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tl.Run(ctx) }()

	require.Eventually(t, func() bool { return len(src.commits()) == 4 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 2)
	assert.Equal(t, "/contacts", got[0].Path)
	assert.Equal(t, "rate_limit", got[1].Gate)
	assert.Equal(t, []int64{1, 2, 3, 4}, src.commits())
}
