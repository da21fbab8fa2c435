package pipeline

import (
	"context"
	"sync"

	"github.com/andresuchdata/autopo-py/replenishment/internal/domain"
)

// MemoryLocker keeps one mutex per run kind inside the process. TryLock never
// blocks.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[domain.RunKind]*sync.Mutex
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: make(map[domain.RunKind]*sync.Mutex)}
}

func (l *MemoryLocker) TryLock(_ context.Context, kind domain.RunKind) (func(), bool, error) {
	l.mu.Lock()
	m, ok := l.locks[kind]
	if !ok {
		m = &sync.Mutex{}
		l.locks[kind] = m
	}
	l.mu.Unlock()

	if !m.TryLock() {
		return nil, false, nil
	}
	var once sync.Once
	return func() { once.Do(m.Unlock) }, true, nil
}
