// Package latch provides short-lived in-flight markers that stop a second
// concurrent attempt on the same key. A latch is an optimisation only; it
// never replaces a storage-level uniqueness guarantee.
package latch

import (
	"context"
	"sync"
	"time"
)

// Latch grants at most one holder per key until released or expired.
//
// TryAcquire reports ok=false when another holder has the key. The returned
// release func is never nil and is safe to call more than once.
type Latch interface {
	TryAcquire(ctx context.Context, key string) (release func(), ok bool, err error)
}

func noop() {}

// Memory is a process-local Latch.
type Memory struct {
	mu   sync.Mutex
	held map[string]time.Time
	ttl  time.Duration
	now  func() time.Time
}

func NewMemory(ttl time.Duration) *Memory {
	return &Memory{held: make(map[string]time.Time), ttl: ttl, now: time.Now}
}

func (m *Memory) TryAcquire(_ context.Context, key string) (func(), bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if exp, ok := m.held[key]; ok && now.Before(exp) {
		return noop, false, nil
	}
	exp := now.Add(m.ttl)
	m.held[key] = exp

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if m.held[key] == exp {
				delete(m.held, key)
			}
		})
	}, true, nil
}
