package session

import (
	"sync"
	"time"
)

// Scheduler is a cancellable repeating call. Start begins calling fn every
// period and returns a stop func; calling stop more than once is fine.
type Scheduler interface {
	Start(period time.Duration, fn func()) (stop func())
}

// TickerScheduler drives fn from a time.Ticker on its own goroutine.
type TickerScheduler struct{}

func (TickerScheduler) Start(period time.Duration, fn func()) func() {
	t := time.NewTicker(period)
	done := make(chan struct{})
	go func() {
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-t.C:
				fn()
			}
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}

// ManualScheduler fires only when Fire is called. Tests and replay tools use
// it to step a session deterministically.
type ManualScheduler struct {
	mu     sync.Mutex
	next   int
	active map[int]func()
	starts int
}

func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{active: map[int]func(){}}
}

func (m *ManualScheduler) Start(_ time.Duration, fn func()) func() {
	m.mu.Lock()
	id := m.next
	m.next++
	m.starts++
	m.active[id] = fn
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.active, id)
		m.mu.Unlock()
	}
}

// Fire runs every active callback once.
func (m *ManualScheduler) Fire() {
	m.mu.Lock()
	fns := make([]func(), 0, len(m.active))
	for _, fn := range m.active {
		fns = append(fns, fn)
	}
	m.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// FireN calls Fire n times.
func (m *ManualScheduler) FireN(n int) {
	for i := 0; i < n; i++ {
		m.Fire()
	}
}

func (m *ManualScheduler) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

func (m *ManualScheduler) Starts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.starts
}
