// Package event provides a small in-process event bus with two consumption
// styles: asynchronous handler callbacks and bounded-lag channel streams.
// Producers never block on subscribers in either style.
package event

import (
	"context"
	"sync"
	"time"
)

// Handler is an asynchronous callback for a topic. Each published event is
// dispatched to handlers on their own goroutines.
type Handler func(ctx context.Context, data any)

// Event is one published bus message as seen by channel subscribers.
type Event struct {
	Topic     string
	Data      any
	Timestamp time.Time
}

type stream struct {
	ch     chan Event
	cancel sync.Once
}

// Manager is the event bus. The zero value is not usable; construct with
// NewManager.
type Manager struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	streams  map[string][]*stream
	closed   bool

	wg sync.WaitGroup // in-flight handler goroutines
}

// NewManager creates an empty bus.
func NewManager() *Manager {
	return &Manager{
		handlers: make(map[string][]Handler),
		streams:  make(map[string][]*stream),
	}
}

// Subscribe registers a handler for a topic. Handlers run asynchronously;
// a slow handler never blocks Publish or other handlers.
func (m *Manager) Subscribe(topic string, h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[topic] = append(m.handlers[topic], h)
}

// Stream attaches a channel subscriber to a topic with the given buffer.
// Events that arrive while the buffer is full are dropped for that
// subscriber (bounded lag); a newly attached stream observes only future
// events. The returned cancel func detaches the stream and closes the
// channel.
func (m *Manager) Stream(topic string, buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	s := &stream{ch: make(chan Event, buffer)}

	m.mu.Lock()
	m.streams[topic] = append(m.streams[topic], s)
	m.mu.Unlock()

	cancel := func() {
		s.cancel.Do(func() {
			// Close under the write lock so Publish, which sends while
			// holding the read lock, can never hit a closed channel.
			m.mu.Lock()
			subs := m.streams[topic]
			for i, other := range subs {
				if other == s {
					m.streams[topic] = append(subs[:i], subs[i+1:]...)
					break
				}
			}
			close(s.ch)
			m.mu.Unlock()
		})
	}
	return s.ch, cancel
}

// Publish fans an event out to every subscriber of the topic. Handler
// subscribers each get their own goroutine; stream subscribers get a
// non-blocking send and miss the event if their buffer is full.
func (m *Manager) Publish(ctx context.Context, topic string, data any) {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return
	}
	handlers := make([]Handler, len(m.handlers[topic]))
	copy(handlers, m.handlers[topic])
	// Register in-flight work before releasing the lock so Close cannot
	// return while these dispatches are pending.
	m.wg.Add(len(handlers))

	// Stream sends stay under the read lock: cancel closes the channel
	// under the write lock, so a send here never races a close. The sends
	// are non-blocking, so the lock is never held for long.
	if streams := m.streams[topic]; len(streams) > 0 {
		ev := Event{Topic: topic, Data: data, Timestamp: time.Now()}
		for _, s := range streams {
			select {
			case s.ch <- ev:
			default:
				// Subscriber lagging, drop rather than block the producer.
			}
		}
	}
	m.mu.RUnlock()

	for _, h := range handlers {
		go func(h Handler) {
			defer m.wg.Done()
			h(ctx, data)
		}(h)
	}
}

// Close stops the bus: further publishes are ignored and the call returns
// once all in-flight handler goroutines have finished. Streams are not
// closed; their cancel funcs remain the way to detach them.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.wg.Wait()
}
