// internal/app/system/keylock/keylock.go

// Package keylock serializes work on a single record across requests.
//
// Enrollment holds the lock for "initiative:<id>" around its read-check-
// write sequence so two concurrent enrollments cannot both pass the
// capacity check against the same stale roster. Derivation holds
// "standard:<number>" so the last write to a standard always reflects a
// snapshot taken after every earlier write.
//
// Enrollment also holds "volunteer:<id>" around each volunteer-side
// read-modify-write, so changes to one volunteer from different
// initiatives do not overwrite each other.
//
// Local serializes within one process. Redis serializes across replicas.
package keylock

import (
	"context"
	"strconv"
	"sync"
)

// Unlock releases a held lock. It is safe to call more than once.
type Unlock func()

// Locker acquires an exclusive lock on key, blocking until it is available
// or ctx is done.
type Locker interface {
	Lock(ctx context.Context, key string) (Unlock, error)
}

// InitiativeKey is the lock key for an initiative's roster.
func InitiativeKey(id string) string { return "initiative:" + id }

// VolunteerKey is the lock key for a volunteer's membership list. When
// both are needed, the initiative lock is taken first.
func VolunteerKey(id string) string { return "volunteer:" + id }

// StandardKey is the lock key for a standard's derived state.
func StandardKey(number int) string { return "standard:" + strconv.Itoa(number) }

// Local is an in-process Locker. It is safe for concurrent use.
type Local struct {
	mu    sync.Mutex
	locks map[string]*localEntry
}

type localEntry struct {
	sem  chan struct{}
	refs int
}

// NewLocal creates an empty in-process locker.
func NewLocal() *Local {
	return &Local{locks: make(map[string]*localEntry)}
}

func (l *Local) Lock(ctx context.Context, key string) (Unlock, error) {
	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		e = &localEntry{sem: make(chan struct{}, 1)}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		l.release(key, e, false)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.release(key, e, true) })
	}, nil
}

func (l *Local) release(key string, e *localEntry, held bool) {
	if held {
		<-e.sem
	}
	l.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, key)
	}
	l.mu.Unlock()
}

// Len returns the number of keys currently held or awaited.
func (l *Local) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
