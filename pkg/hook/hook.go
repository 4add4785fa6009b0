// Package hook provides named lifecycle hooks. The daemon registers
// cleanup callbacks (store close, bus drain) and triggers them once during
// shutdown.
package hook

import (
	"context"
	"sync"
)

// Func is a lifecycle callback. It receives the triggering context and is
// run on its own goroutine.
type Func func(ctx context.Context)

// Manager holds named hook lists and remembers which names have fired.
type Manager struct {
	mu        sync.Mutex
	hooks     map[string][]Func
	triggered map[string]bool
}

// NewManager creates an empty hook manager.
func NewManager() *Manager {
	return &Manager{
		hooks:     make(map[string][]Func),
		triggered: make(map[string]bool),
	}
}

// Register adds a callback under the given name.
func (m *Manager) Register(name string, fn Func) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks[name] = append(m.hooks[name], fn)
}

// Trigger fires every callback registered under name. Callbacks run
// concurrently; Trigger returns once all of them have finished.
func (m *Manager) Trigger(ctx context.Context, name string) {
	m.mu.Lock()
	fns := make([]Func, len(m.hooks[name]))
	copy(fns, m.hooks[name])
	m.triggered[name] = true
	m.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(len(fns))
	for _, fn := range fns {
		fn := fn
		go func() {
			defer wg.Done()
			fn(ctx)
		}()
	}
	wg.Wait()
}

// IsTriggered reports whether Trigger has been called for name.
func (m *Manager) IsTriggered(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.triggered[name]
}
