package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockerSerializesPerElection(t *testing.T) {
	locker := NewElectionLocker()

	require.NoError(t, locker.Acquire(1, time.Second))

	// Same election blocks until released
	err := locker.Acquire(1, 20*time.Millisecond)
	assert.ErrorIs(t, err, ErrLockTimeout)

	// A different election is independent
	require.NoError(t, locker.Acquire(2, time.Second))
	locker.Release(2)

	locker.Release(1)
	require.NoError(t, locker.Acquire(1, time.Second))
	locker.Release(1)
}

func TestLockerReleaseWithoutAcquirePanics(t *testing.T) {
	locker := NewElectionLocker()

	assert.Panics(t, func() { locker.Release(7) })

	require.NoError(t, locker.Acquire(7, time.Second))
	locker.Release(7)
	assert.Panics(t, func() { locker.Release(7) })
}
