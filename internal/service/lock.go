package service

import (
	"context"
	"sync"

	"github.com/voyagen/epgvault/internal/cache"
)

// LocalLock serialises runs within one process when no Redis is configured.
type LocalLock struct {
	mu   sync.Mutex
	held bool
}

// Held reports whether a run currently holds the lock.
func (l *LocalLock) Held(context.Context) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held
}

// TryAcquire takes the lock or returns cache.ErrLocked.
func (l *LocalLock) TryAcquire(context.Context) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held {
		return nil, cache.ErrLocked
	}
	l.held = true
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			l.held = false
			l.mu.Unlock()
		})
	}, nil
}
