package serve

import "sync"

// JoinHandle waits for a spawned task. It exists for resource cleanup and
// panic observation; NopJoinHandle is acceptable when neither is needed.
type JoinHandle interface {
	Join()
}

// Spawner is the thread-pool capability of the extras layer: it runs task
// somewhere and returns a handle to wait on.
type Spawner interface {
	Spawn(task func()) JoinHandle
}

// GoSpawner runs every task on its own goroutine.
type GoSpawner struct{}

func (GoSpawner) Spawn(task func()) JoinHandle {
	h := &goHandle{done: make(chan struct{})}
	go func() {
		defer close(h.done)
		task()
	}()
	return h
}

type goHandle struct {
	done chan struct{}
}

func (h *goHandle) Join() { <-h.done }

// NopJoinHandle returns immediately from Join.
type NopJoinHandle struct{}

func (NopJoinHandle) Join() {}

// LimitedSpawner bounds the number of concurrently running tasks.
type LimitedSpawner struct {
	inner Spawner
	slots chan struct{}
	once  sync.Once
	limit int
}

// NewLimitedSpawner wraps inner with a concurrency cap.
func NewLimitedSpawner(inner Spawner, limit int) *LimitedSpawner {
	if limit < 1 {
		limit = 1
	}
	return &LimitedSpawner{inner: inner, limit: limit}
}

func (s *LimitedSpawner) Spawn(task func()) JoinHandle {
	s.once.Do(func() {
		s.slots = make(chan struct{}, s.limit)
	})
	s.slots <- struct{}{}
	return s.inner.Spawn(func() {
		defer func() { <-s.slots }()
		task()
	})
}
