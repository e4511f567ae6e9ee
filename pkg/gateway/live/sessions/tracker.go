// Package sessions tracks in-flight live sessions so the server can notify
// them about a drain and wait for, or force, their shutdown.
package sessions

import (
	"context"
	"sync"
)

// Handle is what a tracked session exposes to the tracker.
type Handle struct {
	Cancel func()
	Notify func(code, message string) error
}

type Tracker struct {
	mu       sync.Mutex
	sessions map[string]*trackedSession
	wg       sync.WaitGroup
}

type trackedSession struct {
	handle Handle
	once   sync.Once
}

func NewTracker() *Tracker {
	return &Tracker{
		sessions: make(map[string]*trackedSession),
	}
}

// Register adds a session and returns its idempotent unregister func.
// Re-registering an ID displaces the old entry.
func (t *Tracker) Register(sessionID string, h Handle) (unregister func()) {
	if t == nil {
		return func() {}
	}

	entry := &trackedSession{handle: h}

	t.mu.Lock()
	if t.sessions == nil {
		t.sessions = make(map[string]*trackedSession)
	}
	old := t.sessions[sessionID]
	t.sessions[sessionID] = entry
	t.wg.Add(1)
	t.mu.Unlock()

	if old != nil {
		t.unregister(sessionID, old)
	}

	return func() { t.unregister(sessionID, entry) }
}

func (t *Tracker) unregister(sessionID string, entry *trackedSession) {
	if t == nil || entry == nil {
		return
	}
	entry.once.Do(func() {
		t.mu.Lock()
		if t.sessions != nil && t.sessions[sessionID] == entry {
			delete(t.sessions, sessionID)
		}
		t.mu.Unlock()
		t.wg.Done()
	})
}

func (t *Tracker) Count() int {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}

// NotifyAll pushes a notice envelope to every tracked session.
func (t *Tracker) NotifyAll(code, message string) (sent int) {
	if t == nil {
		return 0
	}

	var notifies []func(code, message string) error
	t.mu.Lock()
	for _, entry := range t.sessions {
		if entry == nil || entry.handle.Notify == nil {
			continue
		}
		notifies = append(notifies, entry.handle.Notify)
	}
	t.mu.Unlock()

	for _, notify := range notifies {
		_ = notify(code, message)
		sent++
	}
	return sent
}

func (t *Tracker) CancelAll() (canceled int) {
	if t == nil {
		return 0
	}

	var cancels []func()
	t.mu.Lock()
	for _, entry := range t.sessions {
		if entry == nil || entry.handle.Cancel == nil {
			continue
		}
		cancels = append(cancels, entry.handle.Cancel)
	}
	t.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
		canceled++
	}
	return canceled
}

// Wait blocks until every tracked session has unregistered or ctx ends.
// It reports whether the tracker drained fully.
func (t *Tracker) Wait(ctx context.Context) bool {
	if t == nil {
		return true
	}
	if ctx == nil {
		t.wg.Wait()
		return true
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		t.wg.Wait()
	}()

	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}
