package queue

import (
	"context"
	"sync"

	"github.com/emrgen/revision/internal/model"
)

var _ VersionQueue = (*Memory)(nil)

// Memory keeps published events in process. Events are dropped once the
// buffer is full.
type Memory struct {
	mu     sync.Mutex
	events chan *VersionEvent
	closed bool
}

func NewMemory(size int) *Memory {
	return &Memory{events: make(chan *VersionEvent, size)}
}

func (m *Memory) PublishVersionCreated(ctx context.Context, v *model.Version) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}

	select {
	case m.events <- NewVersionEvent(v):
	default:
	}

	return nil
}

// Events is the stream of published events.
func (m *Memory) Events() <-chan *VersionEvent {
	return m.events
}

func (m *Memory) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.closed {
		m.closed = true
		close(m.events)
	}
}
