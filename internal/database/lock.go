package database

import (
	"fmt"
	"sync"
	"time"
)

// ErrLockTimeout is returned when the append lock for an election could not
// be acquired in time. Callers should treat it as retryable.
var ErrLockTimeout = fmt.Errorf("timed out waiting for election append lock")

// ElectionLocker serializes ballot appends per election. Appends to the same
// election must never interleave or the hash chain forks.
type ElectionLocker interface {
	// Acquire blocks until the lock for electionID is held or the timeout
	// elapses, in which case it returns ErrLockTimeout.
	Acquire(electionID int64, timeout time.Duration) error
	Release(electionID int64)
}

// inProcessLocker implements ElectionLocker with one channel-based mutex per
// election. Sufficient for a single-process deployment; a multi-node
// deployment would swap in an advisory-lock implementation.
type inProcessLocker struct {
	mu    sync.Mutex
	locks map[int64]chan struct{}
}

// NewElectionLocker creates an in-process per-election locker
func NewElectionLocker() ElectionLocker {
	return &inProcessLocker{
		locks: make(map[int64]chan struct{}),
	}
}

func (l *inProcessLocker) lockChan(electionID int64) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch, ok := l.locks[electionID]
	if !ok {
		ch = make(chan struct{}, 1)
		l.locks[electionID] = ch
	}
	return ch
}

func (l *inProcessLocker) Acquire(electionID int64, timeout time.Duration) error {
	ch := l.lockChan(electionID)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ch <- struct{}{}:
		return nil
	case <-timer.C:
		return ErrLockTimeout
	}
}

func (l *inProcessLocker) Release(electionID int64) {
	ch := l.lockChan(electionID)

	select {
	case <-ch:
	default:
		// Releasing an unheld lock means acquire/release pairing is broken
		// somewhere and the chain is no longer protected.
		panic(fmt.Sprintf("release of unheld append lock for election %d", electionID))
	}
}
